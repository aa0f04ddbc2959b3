package backup

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/mihaja/abobot/app/models"
	coreconfig "github.com/mihaja/abobot/core/config"
	"github.com/mihaja/abobot/core/logger"

	"log/slog"
)

const (
	usersFile = "users.csv"
	codesFile = "codes.csv"

	publishTimeout = 30 * time.Second
)

// UserSource lists members for snapshotting.
type UserSource interface {
	List(ctx context.Context) ([]models.User, error)
}

// CodeSource lists code rows for snapshotting.
type CodeSource interface {
	List(ctx context.Context) ([]models.AccessCode, error)
}

// Publisher mirrors the users and codes collections as CSV files in a GitHub
// repository after every mutating write. Publishing is fire-and-forget: each
// call runs in its own goroutine, failures are logged and never surface to
// the write that triggered them.
type Publisher struct {
	gh     *github.Client
	owner  string
	repo   string
	branch string

	users UserSource
	codes CodeSource

	// one mutex per remote file, so concurrent publishes cannot race on
	// the content SHA
	usersMu sync.Mutex
	codesMu sync.Mutex
}

// New builds the publisher from config. Returns nil when backups are
// disabled; a nil Publisher is safe to call.
func New(cfg coreconfig.BackupConfig, users UserSource, codes CodeSource) *Publisher {
	if !cfg.Enabled {
		return nil
	}
	owner, repo, _ := strings.Cut(cfg.Repo, "/")
	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}
	return &Publisher{
		gh:     github.NewClient(nil).WithAuthToken(cfg.Token),
		owner:  owner,
		repo:   repo,
		branch: branch,
		users:  users,
		codes:  codes,
	}
}

// PublishUsers snapshots the members collection in the background.
func (p *Publisher) PublishUsers(ctx context.Context) {
	if p == nil {
		return
	}
	go p.publish(usersFile, &p.usersMu, p.renderUsers)
}

// PublishCodes snapshots the codes collection in the background.
func (p *Publisher) PublishCodes(ctx context.Context) {
	if p == nil {
		return
	}
	go p.publish(codesFile, &p.codesMu, p.renderCodes)
}

func (p *Publisher) publish(file string, mu *sync.Mutex, render func(ctx context.Context) ([]byte, error)) {
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	start := time.Now()
	content, err := render(ctx)
	if err != nil {
		p.logFailure(ctx, file, err)
		return
	}
	if err := p.upsertFile(ctx, file, content); err != nil {
		p.logFailure(ctx, file, err)
		return
	}
	logger.LogEvent(ctx, logger.BKP, slog.LevelInfo, "publish.ok",
		slog.String("file", file),
		slog.String("repo", p.owner+"/"+p.repo),
		slog.Duration("duration", logger.Took(start)),
	)
}

func (p *Publisher) logFailure(ctx context.Context, file string, err error) {
	logger.LogEvent(ctx, logger.BKP, slog.LevelWarn, "publish.failed",
		slog.String("file", file),
		slog.String("repo", p.owner+"/"+p.repo),
		slog.String("err", err.Error()),
	)
}

// upsertFile updates the remote file, creating it when absent.
func (p *Publisher) upsertFile(ctx context.Context, path string, content []byte) error {
	existing, _, _, err := p.gh.Repositories.GetContents(ctx, p.owner, p.repo, path,
		&github.RepositoryContentGetOptions{Ref: p.branch})

	opts := &github.RepositoryContentFileOptions{
		Content: content,
		Branch:  github.String(p.branch),
	}
	if err == nil && existing != nil {
		opts.Message = github.String("maj " + path)
		opts.SHA = existing.SHA
		if _, _, err := p.gh.Repositories.UpdateFile(ctx, p.owner, p.repo, path, opts); err != nil {
			return fmt.Errorf("update %s: %w", path, err)
		}
		return nil
	}

	opts.Message = github.String("création " + path)
	if _, _, err := p.gh.Repositories.CreateFile(ctx, p.owner, p.repo, path, opts); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return nil
}

func (p *Publisher) renderUsers(ctx context.Context) ([]byte, error) {
	users, err := p.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("render users: %w", err)
	}
	return UsersCSV(users)
}

func (p *Publisher) renderCodes(ctx context.Context) ([]byte, error) {
	codes, err := p.codes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("render codes: %w", err)
	}
	return CodesCSV(codes)
}

// UsersCSV renders the members collection in the snapshot layout.
func UsersCSV(users []models.User) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"name", "surname", "phone", "user_id", "telegram_id", "status"}); err != nil {
		return nil, err
	}
	for _, u := range users {
		rec := []string{
			u.Name, u.Surname, u.Phone, u.MemberID,
			strconv.FormatInt(u.TelegramID, 10),
			string(u.Status),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CodesCSV renders the codes collection in the snapshot layout.
func CodesCSV(codes []models.AccessCode) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"user_id", "code", "payment_method", "payment_number", "status", "stamp"}); err != nil {
		return nil, err
	}
	for _, ac := range codes {
		rec := []string{
			ac.MemberID, ac.Code, ac.PaymentMethod, ac.PaymentNumber,
			string(ac.Status),
			strconv.FormatInt(ac.Stamp, 10),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
