package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/hvnguyen/popmart-registrar/internal/config"
	"github.com/hvnguyen/popmart-registrar/internal/id/uuid"
	"github.com/hvnguyen/popmart-registrar/internal/pending"
	"github.com/hvnguyen/popmart-registrar/internal/registration"
	"github.com/hvnguyen/popmart-registrar/internal/scheduler"
	"github.com/hvnguyen/popmart-registrar/internal/sheet"
	"github.com/hvnguyen/popmart-registrar/internal/worker"
)

const startText = "Send one .xlsx file with columns: FullName, DOB_Day, DOB_Month, DOB_Year, " +
	"Phone, Email, IDNumber, optional SessionName. Sale days are scraped from the form " +
	"and rows are assigned per day automatically."

// Router consumes Telegram updates and drives the pipeline: spreadsheet
// documents start a batch, plain text answers pending manual captchas.
type Router struct {
	api       *tgbotapi.BotAPI
	messenger registration.Messenger
	gateway   registration.Gateway
	sched     *scheduler.Scheduler
	pendings  *pending.Store
	worker    *worker.Worker
	hc        *http.Client
	ids       *uuid.Generator
	admins    map[int64]struct{}
	assign    string
	logger    *zap.Logger
}

// NewRouter constructs a Router.
func NewRouter(
	api *tgbotapi.BotAPI,
	messenger registration.Messenger,
	gateway registration.Gateway,
	sched *scheduler.Scheduler,
	pendings *pending.Store,
	w *worker.Worker,
	cfg config.Config,
	logger *zap.Logger,
) *Router {
	admins := make(map[int64]struct{}, len(cfg.Bot.Admins))
	for _, id := range cfg.Bot.Admins {
		admins[id] = struct{}{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		api:       api,
		messenger: messenger,
		gateway:   gateway,
		sched:     sched,
		pendings:  pendings,
		worker:    w,
		hc:        &http.Client{Timeout: 60 * time.Second},
		ids:       uuid.New(),
		admins:    admins,
		assign:    cfg.Registration.AssignMode,
		logger:    logger,
	}
}

// Run blocks consuming updates until the context finishes.
func (r *Router) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := r.api.GetUpdatesChan(u)
	r.logger.Info("bot started", zap.String("username", r.api.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			r.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			r.handleUpdate(ctx, update)
		}
	}
}

func (r *Router) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !r.isAdmin(msg.From.ID) {
		return
	}
	switch {
	case msg.IsCommand():
		r.handleCommand(ctx, msg)
	case msg.Document != nil:
		r.handleDocument(ctx, msg)
	case strings.TrimSpace(msg.Text) != "":
		r.handleReply(ctx, msg)
	}
}

// isAdmin allows everyone when no allow-list is configured.
func (r *Router) isAdmin(userID int64) bool {
	if len(r.admins) == 0 {
		return true
	}
	_, ok := r.admins[userID]
	return ok
}

func (r *Router) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		r.reply(ctx, chatID, startText)
	case "retry":
		if strings.TrimSpace(msg.CommandArguments()) == "" {
			r.reply(ctx, chatID, "Usage: /retry <row_index>")
			return
		}
		r.reply(ctx, chatID, "Resend the spreadsheet to start a new run, then answer the captcha for that row again.")
	case "pending":
		r.reply(ctx, chatID, fmt.Sprintf("%d captcha task(s) awaiting an answer.", r.pendings.Len()))
	}
}

// handleDocument ingests a spreadsheet, scrapes the available sale days,
// plans the assignment, and dispatches one worker per day. It reports the
// plan before dispatching so the operator can see what was claimed.
func (r *Router) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	doc := msg.Document
	if !strings.HasSuffix(strings.ToLower(doc.FileName), ".xlsx") {
		r.reply(ctx, chatID, "Please send an .xlsx file.")
		return
	}
	data, err := r.downloadDocument(ctx, doc.FileID)
	if err != nil {
		r.logger.Error("document download failed", zap.Error(err))
		r.reply(ctx, chatID, "Could not download the file: "+err.Error())
		return
	}
	rows, err := sheet.Parse(data)
	if err != nil {
		r.reply(ctx, chatID, err.Error())
		return
	}

	html, err := r.gateway.FetchFormPage(ctx)
	if err != nil {
		r.reply(ctx, chatID, "Could not reach the registration form: "+err.Error())
		return
	}
	days := r.gateway.SalesDayLabels(html)
	if len(days) == 0 {
		r.reply(ctx, chatID, "No sale days found on the form.")
		return
	}

	var assignment registration.Assignment
	if r.assign == config.AssignBroadcast {
		assignment = registration.Broadcast(days, rows)
	} else {
		assignment = registration.RoundRobin(days, rows)
	}

	batchID, err := r.ids.NewID()
	if err != nil {
		r.reply(ctx, chatID, "Could not start the batch: "+err.Error())
		return
	}
	claimed := r.sched.Dispatch(ctx, batchID, chatID, assignment)
	r.reply(ctx, chatID, fmt.Sprintf(
		"Found %d day(s) on the form, %d row(s) in the sheet. Claimed %d day(s) for batch %s; one worker per day.",
		len(assignment.Order), len(rows), len(claimed), batchID[:8],
	))
	if len(claimed) < len(assignment.Order) {
		r.reply(ctx, chatID, "Some days were already processed or in progress and were skipped.")
	}
}

// handleReply routes a plain text message to the manual-captcha resume
// path. A reply-to message resolves the exact pending task; otherwise the
// oldest pending task in the chat is taken.
func (r *Router) handleReply(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	answer := strings.TrimSpace(msg.Text)

	var (
		task pending.Task
		ok   bool
	)
	if msg.ReplyToMessage != nil {
		task, ok = r.pendings.PopByReply(chatID, msg.ReplyToMessage.MessageID)
	}
	if !ok {
		task, ok = r.pendings.PopByChannel(chatID)
	}
	if !ok {
		r.reply(ctx, chatID, "No pending captcha task for this chat.")
		return
	}
	// Submission blocks on the site; keep the update loop responsive.
	go r.worker.SubmitManual(ctx, task, answer)
}

func (r *Router) downloadDocument(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := r.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d downloading file", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	if err := r.messenger.SendText(ctx, chatID, text); err != nil {
		r.logger.Warn("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
