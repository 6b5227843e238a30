// Command cbt is a terminal client for the CBT platform: login, exam lobby,
// interactive exam taking with a live countdown, and result display.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/luthfiadilal/front-end-CBT-sub000/internal/api"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/auth"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/client"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/config"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/logger"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/model"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/monitor"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/role"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/session"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/store"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/validator"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	validator.Setup()

	ctx := context.Background()

	if cfg.StoreBackend == "encrypted" && cfg.StorePassphrase == "" {
		pass, err := promptPassword("Passphrase untuk penyimpanan lokal: ")
		if err != nil {
			log.Fatal().Err(err).Msg("read passphrase failed")
		}
		cfg.StorePassphrase = pass
	}

	state, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open state store failed")
	}
	defer state.Close()

	pipe := auth.NewPipeline(state, auth.Options{
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		RefreshURL: strings.TrimRight(cfg.APIBaseURL, "/") + "/auth/refresh",
		Leeway:     cfg.RefreshLeeway,
		OnLogout: func() {
			fmt.Println("\nSesi Anda telah berakhir. Silakan login kembali.")
		},
	}, log)
	c := client.New(cfg.APIBaseURL, pipe, state, log)

	app := &app{cfg: cfg, log: log, state: state, client: c}
	if err := app.run(ctx); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	state  *store.State
	client *client.Client
	stdin  *bufio.Scanner
}

func (a *app) run(ctx context.Context) error {
	a.stdin = bufio.NewScanner(os.Stdin)

	user, err := a.ensureLogin(ctx)
	if err != nil {
		return err
	}

	cfgRole, ok := role.Lookup(string(user.Role))
	if !ok {
		return fmt.Errorf("unknown role %q", user.Role)
	}
	fmt.Printf("Selamat datang, %s (%s)\n", user.Name, cfgRole.Role)

	switch cfgRole.Role {
	case role.RoleStudent:
		return a.studentLoop(ctx)
	default:
		return a.staffLoop(ctx)
	}
}

// ensureLogin reuses a persisted session when possible, otherwise prompts.
func (a *app) ensureLogin(ctx context.Context) (*model.User, error) {
	if pair, ok, _ := a.state.TokenPair(); ok {
		user, err := a.client.Me(ctx)
		if err == nil {
			if sub, err := auth.TokenSubject(pair.AccessToken); err == nil && sub != "" {
				fmt.Printf("Melanjutkan sesi sebagai %s.\n", sub)
			}
			return user, nil
		}
		// Stored session no longer valid; fall through to login.
	}

	for {
		fmt.Print("Username: ")
		username, err := a.readLine()
		if err != nil {
			return nil, err
		}
		password, err := promptPassword("Password: ")
		if err != nil {
			return nil, err
		}

		res, err := a.client.Login(ctx, model.LoginRequest{Username: username, Password: password})
		if err != nil {
			printError(err)
			continue
		}
		return &res.User, nil
	}
}

func (a *app) studentLoop(ctx context.Context) error {
	for {
		exams, err := a.client.Exams(ctx)
		if err != nil {
			printError(err)
			return nil
		}
		if len(exams) == 0 {
			fmt.Println("Tidak ada ujian yang tersedia.")
			return nil
		}

		fmt.Println("\nDaftar Ujian:")
		for i, e := range exams {
			fmt.Printf("  %d. %s (%s, %d menit, %d soal)\n", i+1, e.Title, e.Subject, e.DurationMinutes, e.QuestionCount)
		}
		fmt.Print("Pilih nomor ujian (atau 'q' untuk keluar): ")
		line, err := a.readLine()
		if err != nil || line == "q" {
			return nil
		}
		idx, err := strconv.Atoi(line)
		if err != nil || idx < 1 || idx > len(exams) {
			fmt.Println("Pilihan tidak valid.")
			continue
		}

		if err := a.takeExam(ctx, exams[idx-1].ID); err != nil {
			printError(err)
		}
	}
}

func (a *app) takeExam(ctx context.Context, examID uuid.UUID) error {
	ctrl := session.NewController(a.client, a.state, session.Hooks{
		OnTimeout: func() {
			fmt.Println("\nWaktu ujian telah habis!")
		},
	}, a.log)

	if err := ctrl.Enter(ctx, examID); err != nil {
		return err
	}
	if ctrl.Resumed() {
		fmt.Println("Melanjutkan sesi ujian sebelumnya.")
	}

	exam := ctrl.Exam()
	questions := ctrl.Questions()
	rec := ctrl.Record()

	// Best-effort activity reporting while the attempt is active.
	var reporter *monitor.Reporter
	if pair, ok, _ := a.state.TokenPair(); ok {
		wsURL := strings.Replace(strings.TrimRight(a.cfg.APIBaseURL, "/"), "http", "ws", 1) + "/student/monitor"
		reporter = monitor.NewReporter(wsURL, pair.AccessToken, rec.AttemptID, a.cfg.MonitorHeartbeat, a.log)
		monCtx, monCancel := context.WithCancel(ctx)
		defer monCancel()
		go reporter.Start(monCtx)
		defer reporter.Stop()
	}

	fmt.Printf("\n=== %s ===\n", exam.Title)
	for {
		fmt.Printf("Sisa waktu: %s | Terjawab: %d/%d\n", ctrl.Remaining(), ctrl.AnswerCount(), len(questions))
		fmt.Println("Perintah: <nomor soal> untuk menampilkan, 'selesai' untuk mengakhiri, 'keluar' untuk meninggalkan.")
		fmt.Print("> ")
		line, err := a.readLine()
		if err != nil {
			ctrl.Abandon()
			return nil
		}

		switch line {
		case "selesai":
			fmt.Print("Yakin ingin mengakhiri ujian? (y/n): ")
			confirm, _ := a.readLine()
			if confirm != "y" {
				continue
			}
			result, err := ctrl.Finish(ctx)
			if err != nil {
				if errors.Is(err, session.ErrTimedOut) {
					fmt.Println("Ujian sudah berakhir karena waktu habis.")
					return nil
				}
				printError(err)
				continue // retryable: stay in the exam
			}
			printResult(result)
			return nil
		case "keluar":
			fmt.Print("Jawaban Anda tersimpan di server. Yakin ingin keluar? (y/n): ")
			confirm, _ := a.readLine()
			if confirm != "y" {
				continue
			}
			ctrl.Abandon()
			return nil
		default:
			num, err := strconv.Atoi(line)
			if err != nil || num < 1 || num > len(questions) {
				fmt.Println("Perintah tidak dikenal.")
				continue
			}
			if err := a.answerQuestion(ctx, ctrl, questions[num-1], reporter); err != nil {
				if errors.Is(err, session.ErrTimedOut) || errors.Is(err, session.ErrNotActive) {
					return nil
				}
				printError(err)
			}
		}
	}
}

func (a *app) answerQuestion(ctx context.Context, ctrl *session.Controller, q model.Question, reporter *monitor.Reporter) error {
	fmt.Printf("\nSoal %d: %s\n", q.OrderNum, q.Text)
	for _, opt := range q.Options {
		marker := " "
		if sel, _ := ctrl.Answer(q.ID); sel == opt.ID {
			marker = "*"
		}
		fmt.Printf("  [%s] %s. %s\n", marker, opt.ID, opt.Text)
	}
	fmt.Print("Jawaban (atau kosong untuk kembali): ")
	choice, err := a.readLine()
	if err != nil || choice == "" {
		return nil
	}
	choice = strings.ToUpper(choice)

	valid := false
	for _, opt := range q.Options {
		if opt.ID == choice {
			valid = true
			break
		}
	}
	if !valid {
		fmt.Println("Pilihan tidak valid.")
		return nil
	}

	if err := ctrl.SelectAnswer(ctx, q.ID, choice); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Retryable() {
			fmt.Println("Jawaban belum tersimpan di server, pilihan Anda tetap tercatat. Coba lagi.")
			return nil
		}
		return err
	}
	if reporter != nil {
		reporter.Report(monitor.EventHeartbeat, "answered "+q.ID.String())
	}
	fmt.Println("Jawaban tersimpan.")
	return nil
}

// staffLoop is a thin management view for admin/teacher accounts.
func (a *app) staffLoop(ctx context.Context) error {
	for {
		fmt.Println("\nMenu: 1) Daftar ujian  2) Laporan ujian  q) Keluar")
		fmt.Print("> ")
		line, err := a.readLine()
		if err != nil || line == "q" {
			return nil
		}

		switch line {
		case "1":
			exams, err := a.client.AllExams(ctx)
			if err != nil {
				printError(err)
				continue
			}
			for _, e := range exams {
				fmt.Printf("  %s | %-30s | %s | %d soal\n", e.ID, e.Title, e.Status, e.QuestionCount)
			}
		case "2":
			fmt.Print("ID ujian: ")
			raw, _ := a.readLine()
			examID, err := uuid.Parse(raw)
			if err != nil {
				fmt.Println("ID tidak valid.")
				continue
			}
			ranking, err := a.client.Report(ctx, examID)
			if err != nil {
				printError(err)
				continue
			}
			fmt.Println("Peringkat:")
			for _, r := range ranking {
				fmt.Printf("  %2d. %-25s %6.2f  %s\n", r.Rank, r.Name, r.FinalScore, r.StatusLabel)
			}
		default:
			fmt.Println("Pilihan tidak dikenal.")
		}
	}
}

func (a *app) readLine() (string, error) {
	if !a.stdin.Scan() {
		if err := a.stdin.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("stdin closed")
	}
	return strings.TrimSpace(a.stdin.Text()), nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

func printError(err error) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		fmt.Printf("Gagal: %s\n", apiErr.Message)
		for field, msg := range apiErr.Fields {
			fmt.Printf("  - %s: %s\n", field, msg)
		}
		return
	}
	fmt.Printf("Gagal: %v\n", err)
}

func printResult(r *model.Result) {
	fmt.Println("\n=== Hasil Ujian ===")
	fmt.Printf("Benar: %d  Salah: %d  Kosong: %d\n", r.CorrectCount, r.WrongCount, r.UnansweredCount)
	fmt.Printf("Kriteria: C1=%.3f C2=%.3f C3=%.3f C4=%.3f\n", r.Criteria.C1, r.Criteria.C2, r.Criteria.C3, r.Criteria.C4)
	fmt.Printf("Skor preferensi: %.4f\n", r.PreferenceScore)
	fmt.Printf("Nilai akhir: %.2f (%s)\n", r.FinalScore, r.StatusLabel)
	fmt.Printf("Selesai pada: %s\n", r.FinishedAt.Format(time.RFC3339))
}
