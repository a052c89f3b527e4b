package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/citizenhub/complaint-service/internal/config"
	"github.com/citizenhub/complaint-service/internal/observability"
	"github.com/citizenhub/complaint-service/internal/realtime"
)

type options struct {
	server         string
	email          string
	password       string
	lastEventID    string
	reconnectDelay time.Duration
	logLevel       string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("complaint-watch", pflag.ContinueOnError)
	flagSet.StringVar(&opts.server, "server", "http://localhost:8080", "complaint service base URL")
	flagSet.StringVar(&opts.email, "email", "", "account email")
	flagSet.StringVar(&opts.password, "password", os.Getenv("COMPLAINT_WATCH_PASSWORD"), "account password (default $COMPLAINT_WATCH_PASSWORD)")
	flagSet.StringVar(&opts.lastEventID, "last-event-id", "", "resume after this event id")
	flagSet.DurationVar(&opts.reconnectDelay, "reconnect-delay", 5*time.Second, "delay between reconnect attempts")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.email == "" {
		return errors.New("--email is required")
	}

	logger, err := observability.NewLogger(config.LoggerConfig{Level: opts.logLevel}, config.AppConfig{Name: "complaint-watch"})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := login(opts.server, opts.email, opts.password)
	if err != nil {
		return err
	}
	wsURL, err := websocketURL(opts.server)
	if err != nil {
		return err
	}
	logger.Info("signed in", zap.String("user_id", session.UserID), zap.Bool("is_admin", session.IsAdmin))

	client := realtime.NewClient(realtime.ClientConfig{
		URL:            wsURL,
		Token:          session.Token,
		UserID:         session.UserID,
		IsAdmin:        session.IsAdmin,
		ReconnectDelay: opts.reconnectDelay,
		LastEventID:    opts.lastEventID,
	}, nil, printMessage(logger), logger)
	client.OnStateChange(func(state realtime.State) {
		logger.Info("connection state", zap.Stringer("state", state))
	})
	return client.Run(ctx)
}

func printMessage(logger *zap.Logger) realtime.MessageHandler {
	return func(msg realtime.Message) {
		switch msg.Type {
		case realtime.MessageResync:
			logger.Warn("history unavailable; refetch the current state")
		case realtime.MessageError:
			var payload realtime.ErrorPayload
			_ = json.Unmarshal(msg.Payload, &payload)
			logger.Warn("server rejected frame", zap.String("code", payload.Code), zap.String("message", payload.Message))
		default:
			logger.Info("event",
				zap.String("type", string(msg.Type)),
				zap.String("id", msg.ID),
				zap.ByteString("payload", msg.Payload))
		}
	}
}

type loginResponse struct {
	Data struct {
		Token   string `json:"token"`
		IsAdmin bool   `json:"is_admin"`
		User    struct {
			ID string `json:"id"`
		} `json:"user"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type watchSession struct {
	Token   string
	UserID  string
	IsAdmin bool
}

func login(server, email, password string) (*watchSession, error) {
	agent := fiber.Post(strings.TrimRight(server, "/") + "/auth/login").
		Timeout(10 * time.Second).
		JSON(map[string]string{"email": email, "password": password})

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("login: %w", errors.Join(errs...))
	}
	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("login: decode response: %w", err)
	}
	if code != fiber.StatusOK {
		if resp.Error != nil {
			return nil, fmt.Errorf("login: %s: %s", resp.Error.Code, resp.Error.Message)
		}
		return nil, fmt.Errorf("login: status %d", code)
	}

	return &watchSession{Token: resp.Data.Token, UserID: resp.Data.User.ID, IsAdmin: resp.Data.IsAdmin}, nil
}

// websocketURL maps the service base URL onto its /ws endpoint.
func websocketURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid --server: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid --server scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
