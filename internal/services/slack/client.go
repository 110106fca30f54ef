package slack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"

	"transponster/internal/chat"
	"transponster/internal/config"
	"transponster/internal/logging"
	"transponster/internal/services"
)

const maxReplyPages = 10

// Client implements chat.Platform on the Slack Web API.
type Client struct {
	api    *slackapi.Client
	logger *slog.Logger
}

// Option customizes the client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// WithHTTPClient overrides the HTTP client used for API calls and downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithLogger sets the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// New builds a client for the bot token in cfg.
func New(cfg config.Slack, opts ...Option) *Client {
	options := clientOptions{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&options)
	}
	apiOpts := []slackapi.Option{}
	if url := strings.TrimSpace(cfg.APIURL); url != "" {
		if !strings.HasSuffix(url, "/") {
			url += "/"
		}
		apiOpts = append(apiOpts, slackapi.OptionAPIURL(url))
	}
	if options.httpClient != nil {
		apiOpts = append(apiOpts, slackapi.OptionHTTPClient(options.httpClient))
	}
	logger := options.logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		api:    slackapi.New(cfg.BotToken, apiOpts...),
		logger: logger,
	}
}

// Identity is the account the bot token belongs to.
type Identity struct {
	TeamID string
	Team   string
	UserID string
	User   string
}

func (i Identity) String() string {
	return i.Team + "/" + i.User
}

// AuthTest verifies the token and reports who it belongs to.
func (c *Client) AuthTest(ctx context.Context) (Identity, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return Identity{}, wrap("auth.test", err)
	}
	return Identity{TeamID: resp.TeamID, Team: resp.Team, UserID: resp.UserID, User: resp.User}, nil
}

// FileInfo loads file metadata including the threads it was shared in.
func (c *Client) FileInfo(ctx context.Context, fileID string) (chat.File, error) {
	file, _, _, err := c.api.GetFileInfoContext(ctx, fileID, 0, 0)
	if err != nil {
		return chat.File{}, wrap("files.info", err)
	}
	return convertFile(*file), nil
}

// Download streams the file's private download URL into w.
func (c *Client) Download(ctx context.Context, file chat.File, w io.Writer) error {
	if file.DownloadURL == "" {
		return services.Wrap(services.ErrValidation, "slack", "download", "file "+file.ID+" has no download url", nil)
	}
	if err := c.api.GetFileContext(ctx, file.DownloadURL, w); err != nil {
		return wrap("download", err)
	}
	return nil
}

// Upload posts a file into a thread with an optional comment.
func (c *Client) Upload(ctx context.Context, upload chat.Upload) (chat.File, error) {
	if len(upload.Content) == 0 {
		return chat.File{}, services.Wrap(services.ErrValidation, "slack", "upload", upload.Filename+" is empty", nil)
	}
	title := upload.Title
	if title == "" {
		title = upload.Filename
	}
	summary, err := c.api.UploadFileV2Context(ctx, slackapi.UploadFileV2Parameters{
		Reader:          bytes.NewReader(upload.Content),
		FileSize:        len(upload.Content),
		Filename:        upload.Filename,
		Title:           title,
		InitialComment:  upload.InitialComment,
		Channel:         upload.ChannelID,
		ThreadTimestamp: upload.ThreadTS,
	})
	if err != nil {
		return chat.File{}, wrap("files.upload", err)
	}
	return chat.File{
		ID:      summary.ID,
		Name:    upload.Filename,
		Title:   summary.Title,
		Size:    int64(len(upload.Content)),
		Threads: map[string]string{upload.ChannelID: upload.ThreadTS},
	}, nil
}

// PostMessage posts text, threaded under threadTS when it is set.
func (c *Client) PostMessage(ctx context.Context, channelID, threadTS, text string) error {
	opts := []slackapi.MsgOption{
		slackapi.MsgOptionText(text, false),
		slackapi.MsgOptionDisableLinkUnfurl(),
	}
	if threadTS != "" {
		opts = append(opts, slackapi.MsgOptionTS(threadTS))
	}
	if _, _, err := c.api.PostMessageContext(ctx, channelID, opts...); err != nil {
		return wrap("chat.postMessage", err)
	}
	return nil
}

// ThreadMessage loads the message at ts, whether it is a thread parent or a
// reply.
func (c *Client) ThreadMessage(ctx context.Context, channelID, ts string) (chat.Message, error) {
	params := &slackapi.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: ts,
		Latest:    ts,
		Oldest:    ts,
		Inclusive: true,
		Limit:     1,
	}
	for range maxReplyPages {
		msgs, hasMore, cursor, err := c.api.GetConversationRepliesContext(ctx, params)
		if err != nil {
			return chat.Message{}, wrap("conversations.replies", err)
		}
		for _, msg := range msgs {
			if msg.Timestamp == ts {
				return convertMessage(msg), nil
			}
		}
		if !hasMore || cursor == "" {
			break
		}
		params.Cursor = cursor
	}
	return chat.Message{}, services.Wrap(services.ErrNotFound, "slack", "conversations.replies", "message "+ts+" not found in "+channelID, nil)
}

// UserName returns the display name, falling back to real and handle names.
func (c *Client) UserName(ctx context.Context, userID string) (string, error) {
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return "", wrap("users.info", err)
	}
	for _, name := range []string{user.Profile.DisplayName, user.Profile.RealName, user.RealName, user.Name} {
		if name = strings.TrimSpace(name); name != "" {
			return name, nil
		}
	}
	return userID, nil
}

// FilesSince lists files of the given Slack types (for example "text")
// created at or after since, following every page.
func (c *Client) FilesSince(ctx context.Context, since time.Time, types string) ([]chat.File, error) {
	params := slackapi.NewGetFilesParameters()
	params.TimestampFrom = slackapi.JSONTime(since.Unix())
	if types != "" {
		params.Types = types
	}
	params.Count = 200
	params.Page = 1

	var out []chat.File
	for {
		files, paging, err := c.api.GetFilesContext(ctx, params)
		if err != nil {
			return out, wrap("files.list", err)
		}
		for _, f := range files {
			out = append(out, convertFile(f))
		}
		if paging == nil || paging.Page >= paging.Pages {
			return out, nil
		}
		params.Page++
	}
}

func convertFile(f slackapi.File) chat.File {
	threads := make(map[string]string)
	for _, shares := range []map[string][]slackapi.ShareFileInfo{f.Shares.Public, f.Shares.Private} {
		for channel, infos := range shares {
			if len(infos) == 0 {
				continue
			}
			if _, seen := threads[channel]; seen {
				continue
			}
			root := infos[0].ThreadTs
			if root == "" {
				root = infos[0].Ts
			}
			threads[channel] = root
		}
	}
	return chat.File{
		ID:          f.ID,
		Name:        f.Name,
		Title:       f.Title,
		Mimetype:    f.Mimetype,
		Filetype:    f.Filetype,
		Size:        int64(f.Size),
		UserID:      f.User,
		DownloadURL: f.URLPrivateDownload,
		Permalink:   f.Permalink,
		Threads:     threads,
		Created:     int64(f.Created),
	}
}

func convertMessage(msg slackapi.Message) chat.Message {
	out := chat.Message{
		TS:       msg.Timestamp,
		ThreadTS: msg.ThreadTimestamp,
		UserID:   msg.User,
		Text:     msg.Text,
	}
	for _, f := range msg.Files {
		out.Files = append(out.Files, convertFile(f))
	}
	return out
}

func wrap(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("slack %s: %w", op, err)
	}
	var rateErr *slackapi.RateLimitedError
	if errors.As(err, &rateErr) {
		return services.Wrap(services.ErrQuota, "slack", op, "retry after "+rateErr.RetryAfter.String(), err)
	}
	var apiErr slackapi.SlackErrorResponse
	if errors.As(err, &apiErr) {
		switch apiErr.Err {
		case "file_not_found", "file_deleted", "message_not_found", "thread_not_found", "user_not_found", "channel_not_found":
			return services.Wrap(services.ErrNotFound, "slack", op, "", err)
		case "invalid_auth", "not_authed", "account_inactive", "token_revoked", "missing_scope", "not_in_channel":
			return services.Wrap(services.ErrConfiguration, "slack", op, "", err)
		}
	}
	return services.Wrap(services.ErrTransport, "slack", op, "", err)
}
