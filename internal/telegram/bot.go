package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tele "gopkg.in/telebot.v3"

	"github.com/tubebeam/tubebeam/internal/admission"
	"github.com/tubebeam/tubebeam/internal/config"
	"github.com/tubebeam/tubebeam/internal/deliver"
	"github.com/tubebeam/tubebeam/internal/job"
	"github.com/tubebeam/tubebeam/internal/model"
	"github.com/tubebeam/tubebeam/internal/probe"
)

const (
	pollTimeout    = 10 * time.Second
	deliverTimeout = 10 * time.Minute

	callbackPrefix = "dl"
	callbackSep    = "|"

	startText = "Send me a YouTube link and pick a format. " +
		"Audio comes back as MP3, video as MP4. /cancel stops your active downloads."
)

var audioBitrates = []string{"128k", "192k", "320k"}

var mediaIDRe = regexp.MustCompile(`(?:v=|youtu\.be/|/shorts/|/embed/|/live/)([A-Za-z0-9_-]{11})`)

// Deps are the services the bot drives
type Deps struct {
	Prober  *probe.Prober
	Gate    *admission.Controller
	Runner  *job.Runner
	Store   deliver.CacheStore
	Hoster  deliver.Hoster
	Session *SessionStore

	// Primary is the regular fetch backend; Mirror serves media the
	// primary prober could not read.
	Primary job.Backend
	Mirror  job.Backend
}

// Bot wires chat updates to the download pipeline
type Bot struct {
	bot    *tele.Bot
	cfg    *config.Config
	router *deliver.Router
	deps   Deps
}

// New builds the bot, its delivery router, and all handlers
func New(cfg *config.Config, deps Deps) (*Bot, error) {
	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.BotToken,
		Poller: &tele.LongPoller{Timeout: pollTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	b := &Bot{
		bot:  tb,
		cfg:  cfg,
		deps: deps,
	}
	messenger := NewMessenger(tb, cfg.CacheChannel)
	b.router = deliver.NewRouter(messenger, deps.Hoster, deps.Store, deliver.InlineSizeLimit)

	tb.Handle("/start", b.onStart)
	tb.Handle("/cancel", b.onCancel)
	tb.Handle("/killall", b.onKillAll)
	tb.Handle(tele.OnText, b.onText)
	tb.Handle(tele.OnCallback, b.onCallback)

	return b, nil
}

// Start blocks polling for updates until Stop is called
func (b *Bot) Start() {
	log.Printf("bot: polling as @%s", b.bot.Me.Username)
	b.bot.Start()
}

// Stop terminates the update poller
func (b *Bot) Stop() {
	b.bot.Stop()
}

func (b *Bot) onStart(c tele.Context) error {
	return c.Send(startText)
}

// onCancel kills the sender's active downloads
func (b *Bot) onCancel(c tele.Context) error {
	killed := b.deps.Runner.KillAll(c.Sender().ID)
	if killed == 0 {
		return c.Send("Nothing to cancel.")
	}
	return c.Send(fmt.Sprintf("Cancelled %d download(s).", killed))
}

// onKillAll kills every active download. Admin only.
func (b *Bot) onKillAll(c tele.Context) error {
	if b.cfg.AdminID == 0 || c.Sender().ID != b.cfg.AdminID {
		return nil
	}
	killed := b.deps.Runner.KillAll(0)
	return c.Send(fmt.Sprintf("Killed %d download(s).", killed))
}

// onText probes a posted link and offers the format keyboard
func (b *Bot) onText(c tele.Context) error {
	mediaID := extractMediaID(c.Text())
	if mediaID == "" {
		return c.Send("That does not look like a YouTube link.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	info, err := b.deps.Prober.Probe(ctx, mediaID)
	if err != nil {
		log.Printf("bot: probe %s: %v", mediaID, err)
		return c.Send("Could not read that video. It may be private or removed.")
	}

	if reason := b.policyReject(info); reason != "" {
		return c.Send(reason)
	}

	text := fmt.Sprintf("%s\n%s · %s\n\nPick a format:",
		info.Title, info.Channel,
		(time.Duration(info.DurationSeconds) * time.Second).Round(time.Second).String())
	return c.Send(text, qualityKeyboard(info))
}

// onCallback handles a format button press and starts the job
func (b *Bot) onCallback(c tele.Context) error {
	mediaID, formatID, quality, format, ok := parseCallback(c.Callback().Data)
	if !ok {
		return c.Respond()
	}
	_ = c.Respond(&tele.CallbackResponse{})

	chat := c.Chat()
	sender := c.Sender()
	ctx := context.Background()

	// a previously delivered audio file is replayed straight from the
	// cache channel, no process runs
	if format == model.FormatAudio {
		if record, err := b.deps.Store.FindByMediaID(ctx, mediaID); err == nil && record != nil {
			if err := b.replayCached(chat, record); err == nil {
				if err := b.deps.Store.IncrementDownload(ctx, mediaID); err != nil {
					log.Printf("bot: count cached download %s: %v", mediaID, err)
				}
				return nil
			}
		}
	}

	slot, err := b.deps.Gate.TryAdmit(sender.ID, mediaID)
	if err != nil {
		return c.Send(admissionText(err))
	}

	info, err := b.deps.Prober.Probe(ctx, mediaID)
	if err != nil {
		slot.Release()
		return c.Send("Could not read that video anymore. Send the link again.")
	}

	// Re-checked here because the button may be pressed long after the
	// probe reply, e.g. on a stream that has since gone live
	if reason := b.policyReject(info); reason != "" {
		slot.Release()
		return c.Send(reason)
	}

	status, err := b.bot.Send(chat, "Queued…")
	if err != nil {
		slot.Release()
		return err
	}

	req := model.JobRequest{
		MediaID:     mediaID,
		Format:      format,
		Quality:     quality,
		FormatID:    formatID,
		RequesterID: sender.ID,
		VIP:         b.isVIP(sender),
	}

	j := b.deps.Runner.Start(req, b.backendFor(info))
	b.deps.Session.Put(ctx, chat.ID, &Session{
		JobID:         j.ID,
		StatusMessage: status.ID,
		MediaID:       mediaID,
	})

	j.OnProgress(func(sample model.ProgressSample) {
		b.editProgress(chat.ID, status, sample)
	}).OnComplete(func(res job.Result) {
		b.deliverResult(chat, status, info, req, res, slot)
	}).OnError(func(err error) {
		b.reportFailure(chat, status, mediaID, err, slot)
	}).Begin()

	return nil
}

// policyReject returns a user-facing rejection for media that must never
// reach the runner, or "" when the media is downloadable
func (b *Bot) policyReject(info *model.MediaInfo) string {
	if info.IsLive {
		return "Live streams cannot be downloaded."
	}
	if int(info.DurationSeconds) > b.cfg.MaxDurationSec {
		return fmt.Sprintf("Videos longer than %s are not supported.",
			(time.Duration(b.cfg.MaxDurationSec) * time.Second).String())
	}
	return ""
}

// replayCached copies the cached channel message into chat
func (b *Bot) replayCached(chat *tele.Chat, record *model.CacheRecord) error {
	chatID, err := strconv.ParseInt(record.ChatRef, 10, 64)
	if err != nil {
		return err
	}
	_, err = b.bot.Copy(chat, tele.StoredMessage{
		MessageID: record.MessageRef,
		ChatID:    chatID,
	})
	return err
}

// backendFor picks the fetch backend matching the prober that produced
// the info. Media the primary prober could not read is fetched through
// the mirror as well.
func (b *Bot) backendFor(info *model.MediaInfo) job.Backend {
	if info.Source == b.deps.Mirror.Name() {
		return b.deps.Mirror
	}
	return b.deps.Primary
}

// isVIP reports whether user is a member of the VIP channel
func (b *Bot) isVIP(user *tele.User) bool {
	if b.cfg.VIPChannel == 0 {
		return false
	}
	member, err := b.bot.ChatMemberOf(tele.ChatID(b.cfg.VIPChannel), user)
	if err != nil {
		return false
	}
	switch member.Role {
	case tele.Creator, tele.Administrator, tele.Member:
		return true
	}
	return false
}

// editProgress rewrites the status message for a fresh sample, throttled
// per chat
func (b *Bot) editProgress(chatID int64, status *tele.Message, sample model.ProgressSample) {
	if !b.deps.Session.AllowEdit(chatID) {
		return
	}
	if _, err := b.bot.Edit(status, progressText(sample)); err != nil {
		log.Printf("bot: edit status: %v", err)
	}
}

// deliverResult routes the finished file and cleans up the work dir
func (b *Bot) deliverResult(chat *tele.Chat, status *tele.Message, info *model.MediaInfo, req model.JobRequest, res job.Result, slot *admission.Slot) {
	defer slot.Release()
	defer os.RemoveAll(filepath.Dir(res.Path))
	defer b.deps.Session.Clear(context.Background(), chat.ID)

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	if _, err := b.bot.Edit(status, "Uploading…"); err != nil {
		log.Printf("bot: edit status: %v", err)
	}

	meta := deliver.FileMeta{
		MediaID:      req.MediaID,
		Title:        info.Title,
		Performer:    info.Channel,
		Duration:     int(info.DurationSeconds),
		ThumbnailURL: info.ThumbnailURL,
		Audio:        req.Format == model.FormatAudio,
	}
	out, err := b.router.Deliver(ctx, res.Path, res.Size, meta)
	if err != nil {
		log.Printf("bot: deliver %s: %v", req.MediaID, err)
		b.edit(status, "Upload failed. Try again later.")
		return
	}

	if out.Inline {
		if err := b.replayCached(chat, &model.CacheRecord{
			MessageRef: out.Message.MessageRef,
			ChatRef:    out.Message.ChatRef,
		}); err != nil {
			log.Printf("bot: copy to chat %d: %v", chat.ID, err)
			b.edit(status, "Upload failed. Try again later.")
			return
		}
		if err := b.bot.Delete(status); err != nil {
			log.Printf("bot: delete status: %v", err)
		}
		return
	}

	b.edit(status, fmt.Sprintf(
		"File is too large to send here (%s), so it was uploaded for you:\n%s\nThe link expires %s.",
		out.Link.SizeLabel, out.Link.URL, out.Link.Expiry))
}

// reportFailure posts the single failure notice for a job
func (b *Bot) reportFailure(chat *tele.Chat, status *tele.Message, mediaID string, err error, slot *admission.Slot) {
	defer slot.Release()
	defer b.deps.Session.Clear(context.Background(), chat.ID)

	// stale probe info is the usual culprit for fetch failures
	b.deps.Prober.Forget(mediaID)

	b.edit(status, failureText(err))
}

func (b *Bot) edit(status *tele.Message, text string) {
	if _, err := b.bot.Edit(status, text); err != nil {
		log.Printf("bot: edit status: %v", err)
	}
}

// qualityKeyboard builds the inline format picker for a probed video
func qualityKeyboard(info *model.MediaInfo) *tele.ReplyMarkup {
	var rows [][]tele.InlineButton
	var row []tele.InlineButton

	for _, f := range info.Formats {
		if f.AudioOnly {
			continue
		}
		label := f.Quality
		if f.SizeApprox > 0 {
			label += " · " + humanize.IBytes(uint64(f.SizeApprox))
		}
		row = append(row, tele.InlineButton{
			Text: label,
			Data: callbackData(info.ID, f.FormatID, f.Quality, "v"),
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	audioID := ""
	if best := info.BestAudio(); best != nil {
		audioID = best.FormatID
	}
	var audioRow []tele.InlineButton
	for _, bitrate := range audioBitrates {
		audioRow = append(audioRow, tele.InlineButton{
			Text: "MP3 " + bitrate,
			Data: callbackData(info.ID, audioID, bitrate, "a"),
		})
	}
	rows = append(rows, audioRow)

	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

func callbackData(mediaID, formatID, quality, kind string) string {
	return strings.Join([]string{callbackPrefix, mediaID, formatID, quality, kind}, callbackSep)
}

func parseCallback(data string) (mediaID, formatID, quality string, format model.Format, ok bool) {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(data), "\f"), callbackSep)
	if len(parts) != 5 || parts[0] != callbackPrefix {
		return "", "", "", "", false
	}
	format = model.FormatVideo
	if parts[4] == "a" {
		format = model.FormatAudio
	}
	return parts[1], parts[2], parts[3], format, true
}

func extractMediaID(text string) string {
	if m := mediaIDRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func progressText(sample model.ProgressSample) string {
	switch sample.Stage {
	case model.StageConverting:
		return fmt.Sprintf("Converting… %.0f%%", sample.Percent)
	default:
		text := fmt.Sprintf("Downloading… %.1f%%", sample.Percent)
		if sample.Transferred != "" {
			text += " of " + sample.Transferred
		}
		if sample.Rate != "" {
			text += " at " + sample.Rate
		}
		return text
	}
}

func admissionText(err error) string {
	var inProgress *model.AlreadyInProgressError
	if errors.As(err, &inProgress) {
		return "That video is already downloading for you."
	}
	var limit *model.ConcurrencyLimitError
	if errors.As(err, &limit) {
		return fmt.Sprintf("You already have %d download(s) running. Wait for them to finish or /cancel.", limit.Count)
	}
	return "Cannot start this download right now."
}

func failureText(err error) string {
	var cancelled *model.CancelledError
	if errors.As(err, &cancelled) {
		return "Cancelled."
	}
	var fetch *model.FetchError
	if errors.As(err, &fetch) {
		return "Download failed. The video may be restricted in the bot's region."
	}
	var transcode *model.TranscodeError
	if errors.As(err, &transcode) {
		return "Conversion failed. Try a different quality."
	}
	return "Something went wrong. Try again later."
}
