package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/mindcheck/backend/internal/analysis/crisis"
	"github.com/zhouzirui/mindcheck/backend/internal/analysis/phq9"
	"github.com/zhouzirui/mindcheck/backend/internal/config"
	"github.com/zhouzirui/mindcheck/backend/internal/model/chat"
	"github.com/zhouzirui/mindcheck/backend/internal/service/ai"
	"github.com/zhouzirui/mindcheck/backend/internal/service/conversation"
	"github.com/zhouzirui/mindcheck/backend/internal/service/profile"
	"github.com/zhouzirui/mindcheck/backend/internal/service/referral"
	"github.com/zhouzirui/mindcheck/backend/internal/service/timer"
	"github.com/zhouzirui/mindcheck/backend/internal/store/backend"
	"github.com/zhouzirui/mindcheck/backend/pkg/utils"
)

func main() {
	_ = godotenv.Load()

	var (
		profileID string
		verbose   bool
	)

	root := &cobra.Command{
		Use:   "screener",
		Short: "Terminal client for the PHQ-9 screening companion",
		Long: `screener runs the onboarding questionnaire and the timed chat session
in the terminal, using the same store and assistant configuration as the API server.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.WarnLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			utils.SetupLogger(level, true)
		},
	}
	root.PersistentFlags().StringVar(&profileID, "profile", "", "profile id (defaults to a new random id)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "score [answers...]",
		Short: "Score up to nine answers (0-3) without saving anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := make([]int, 0, len(args))
			for _, arg := range args {
				v, err := strconv.Atoi(arg)
				if err != nil {
					return errors.Wrapf(err, "answer %q is not a number", arg)
				}
				raw = append(raw, v)
			}
			answers, err := phq9.ParseAnswers(raw)
			if err != nil {
				return err
			}
			score := phq9.Score(answers)
			fmt.Fprintf(cmd.OutOrStdout(), "score=%d severity=%s (%s)\n", score, phq9.Classify(score), phq9.Classify(score).Label())
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "referral <zip>",
		Short: "Print the treatment locator link for a ZIP code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			svc, err := referral.NewService(cfg.Referral.BaseURL)
			if err != nil {
				return err
			}
			link, err := svc.Lookup(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget the profile, transcript and session timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if profileID == "" {
				return errors.New("--profile is required for reset")
			}
			return withServices(cmd.Context(), func(s *services) error {
				if err := s.profiles.Reset(cmd.Context(), profileID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "profile %s reset\n", profileID)
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "chat",
		Short: "Onboard if needed, then chat until the session time runs out",
		RunE: func(cmd *cobra.Command, args []string) error {
			if profileID == "" {
				profileID = uuid.NewString()
			}
			return withServices(cmd.Context(), func(s *services) error {
				t := &terminal{in: bufio.NewScanner(cmd.InOrStdin()), out: cmd.OutOrStdout()}
				return runChat(cmd.Context(), s, t, profileID)
			})
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type services struct {
	cfg       *config.Config
	profiles  *profile.Service
	assistant ai.Assistant
	detector  *crisis.Detector
}

func withServices(ctx context.Context, fn func(*services) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	kv, err := backend.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer kv.Close()

	assistant, err := ai.New(ctx, cfg.AI)
	if err != nil {
		return err
	}
	detector, err := crisis.New(cfg.Crisis.ExtraPatterns...)
	if err != nil {
		return err
	}

	return fn(&services{cfg: cfg, profiles: profile.NewService(kv), assistant: assistant, detector: detector})
}

type terminal struct {
	in  *bufio.Scanner
	out io.Writer
}

func (t *terminal) ask(prompt string) (string, bool) {
	fmt.Fprint(t.out, prompt)
	if !t.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(t.in.Text()), true
}

func (t *terminal) printf(format string, args ...any) {
	fmt.Fprintf(t.out, format, args...)
}

func onboard(ctx context.Context, s *services, t *terminal, profileID string) (chat.Profile, error) {
	var name string
	for name == "" {
		var ok bool
		if name, ok = t.ask("What should we call you? "); !ok {
			return chat.Profile{}, io.EOF
		}
	}

	t.printf("\nOver the last 2 weeks, how often have you been bothered by the following problems?\n")
	for i, label := range phq9.AnswerLabels() {
		t.printf("  %d = %s\n", i, label)
	}

	var answers phq9.Answers
	for i, question := range phq9.Questions() {
		for {
			raw, ok := t.ask(fmt.Sprintf("%d. %s [0-3]: ", i+1, question))
			if !ok {
				return chat.Profile{}, io.EOF
			}
			v, err := strconv.Atoi(raw)
			if err == nil && v >= 0 && v <= phq9.MaxAnswer {
				answers[i] = v
				break
			}
			t.printf("Please enter a number from 0 to 3.\n")
		}
	}

	p, err := s.profiles.Complete(ctx, profileID, name, answers)
	if err != nil {
		return chat.Profile{}, err
	}
	t.printf("\nYour score: %d/%d (%s)\n\n", p.Score, phq9.MaxScore, p.SeverityLabel)
	return p, nil
}

func runChat(ctx context.Context, s *services, t *terminal, profileID string) error {
	p, err := s.profiles.Load(ctx, profileID)
	if errors.Is(err, profile.ErrNotOnboarded) {
		p, err = onboard(ctx, s, t, profileID)
	}
	if err != nil {
		return err
	}

	kv, err := s.profiles.Scope(profileID)
	if err != nil {
		return err
	}

	ctrl := conversation.New(conversation.Config{
		KV:        kv,
		Assistant: s.assistant,
		Detector:  s.detector,
		Timer:     timer.New(kv, s.cfg.Session.Duration),
		UserName:  p.UserName,
		Severity:  p.Severity,
	})
	defer ctrl.Close()

	idle := make(chan struct{}, 1)
	ctrl.Subscribe(func(ev conversation.Event) {
		switch ev.Type {
		case conversation.EventMessage:
			if ev.Message.Sender == chat.SenderAssistant {
				t.printf("assistant> %s\n", ev.Message.Text)
			}
		case conversation.EventCrisis:
			t.printf("\n*** %s ***\n%s\n\n", ev.Notice.Title, ev.Notice.Body)
		case conversation.EventBusy:
			if !ev.Busy {
				select {
				case idle <- struct{}{}:
				default:
				}
			}
		case conversation.EventExpired:
			t.printf("\n[session time is up. type /continue to keep chatting]\n")
		}
	})

	if err := ctrl.Activate(ctx); err != nil {
		return err
	}

	log.Debug().Str("profile", profileID).Msg("chat session started")
	t.printf("profile: %s (use --profile %s to resume)\n", profileID, profileID)
	t.printf("time left: %s. commands: /time /continue /quit\n\n", timer.Format(ctrl.Remaining()))
	for _, m := range ctrl.Messages() {
		who := "you"
		if m.Sender == chat.SenderAssistant {
			who = "assistant"
		}
		t.printf("%s> %s\n", who, m.Text)
	}

	for {
		line, ok := t.ask("you> ")
		if !ok || ctx.Err() != nil {
			return nil
		}

		switch line {
		case "/quit":
			return nil
		case "/time":
			t.printf("time left: %s\n", timer.Format(ctrl.Remaining()))
			continue
		case "/continue":
			ctrl.DismissGate()
			continue
		}

		switch err := ctrl.SubmitUserMessage(line); {
		case err == nil:
			select {
			case <-idle:
			case <-ctx.Done():
				return nil
			}
		case errors.Is(err, conversation.ErrEmptyMessage):
		case errors.Is(err, conversation.ErrSessionGated):
			t.printf("[session time is up. type /continue to keep chatting]\n")
		default:
			t.printf("[%v]\n", err)
		}
	}
}
