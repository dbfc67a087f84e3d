package telegram

import (
	"context"
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v3"

	"github.com/tubebeam/tubebeam/internal/deliver"
)

// Messenger uploads finished files into the cache channel. The bot then
// copies the channel message into the requesting chat, so a file is
// pushed through the transport once no matter how often it is asked for.
type Messenger struct {
	bot       *tele.Bot
	cacheChat tele.ChatID
}

// NewMessenger wraps bot for uploads into the channel with id cacheChat
func NewMessenger(bot *tele.Bot, cacheChat int64) *Messenger {
	return &Messenger{bot: bot, cacheChat: tele.ChatID(cacheChat)}
}

// SendFile uploads the file at path and returns the channel message refs
func (m *Messenger) SendFile(ctx context.Context, path string, meta deliver.FileMeta) (*deliver.SentMessage, error) {
	var (
		msg *tele.Message
		err error
	)

	if meta.Audio {
		audio := &tele.Audio{
			File:      tele.FromDisk(path),
			Title:     meta.Title,
			Performer: meta.Performer,
			Duration:  meta.Duration,
		}
		if meta.ThumbnailURL != "" {
			audio.Thumbnail = &tele.Photo{File: tele.FromURL(meta.ThumbnailURL)}
		}
		msg, err = m.bot.Send(m.cacheChat, audio)
	} else {
		video := &tele.Video{
			File:      tele.FromDisk(path),
			Caption:   meta.Title,
			Duration:  meta.Duration,
			Width:     meta.Width,
			Height:    meta.Height,
			Streaming: true,
		}
		msg, err = m.bot.Send(m.cacheChat, video)
	}
	if err != nil {
		return nil, fmt.Errorf("send to cache channel: %w", err)
	}

	return &deliver.SentMessage{
		FileRef:    fileRef(msg),
		MessageRef: strconv.Itoa(msg.ID),
		ChatRef:    strconv.FormatInt(msg.Chat.ID, 10),
	}, nil
}

func fileRef(msg *tele.Message) string {
	switch {
	case msg.Audio != nil:
		return msg.Audio.FileID
	case msg.Video != nil:
		return msg.Video.FileID
	case msg.Document != nil:
		return msg.Document.FileID
	}
	return ""
}
