package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

// reconnectBackoff is the pause before reconnecting after a recoverable drop.
const reconnectBackoff = 5 * time.Second

// WhatsAppConfig configures the WhatsApp channel.
type WhatsAppConfig struct {
	// SessionDB is the sqlite file holding the paired device credentials.
	SessionDB string
	// LogLevel is passed to whatsmeow's own logger (DEBUG, INFO, WARN, ERROR).
	LogLevel string
}

// WhatsApp is a ChannelGateway over a WhatsApp multi-device session.
type WhatsApp struct {
	client  *whatsmeow.Client
	session *Session
	logger  *slog.Logger

	// ctx bounds the lifetime of the connection loop.
	ctx context.Context
	mu  sync.Mutex
}

// NewWhatsApp opens the device store and prepares a client. Call Start to
// connect.
func NewWhatsApp(ctx context.Context, cfg WhatsAppConfig, logger *slog.Logger) (*WhatsApp, error) {
	if logger == nil {
		logger = slog.Default()
	}
	level := strings.ToUpper(cfg.LogLevel)
	if level == "" {
		level = "WARN"
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", cfg.SessionDB)
	container, err := sqlstore.New("sqlite3", dsn, waLog.Stdout("Database", level, true))
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	device, err := container.GetFirstDevice()
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}

	client := whatsmeow.NewClient(device, waLog.Stdout("Client", level, true))
	// Reconnects are driven by the Session so the lifecycle stays in one place.
	client.EnableAutoReconnect = false

	w := &WhatsApp{
		client:  client,
		session: NewSession(logger),
		logger:  logger,
		ctx:     ctx,
	}
	client.AddEventHandler(w.handleEvent)
	w.session.OnReconnect(w.reconnect)
	return w, nil
}

// Session returns the session driven by this client.
func (w *WhatsApp) Session() *Session {
	return w.session
}

// IsReady reports whether the session is paired and connected.
func (w *WhatsApp) IsReady() bool {
	return w.session.IsReady() && w.client.IsConnected()
}

// Start connects. An unpaired device surfaces pairing codes into the session
// until it is scanned; a paired device reconnects with stored credentials.
func (w *WhatsApp) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.client.IsConnected() {
		return nil
	}

	if w.client.Store.ID == nil {
		qrChan, err := w.client.GetQRChannel(w.ctx)
		if err != nil {
			return fmt.Errorf("qr channel: %w", err)
		}
		if err := w.client.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		go w.consumeQR(qrChan)
		return nil
	}

	w.session.Pairing("")
	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// Stop disconnects without logging out.
func (w *WhatsApp) Stop() {
	w.session.OnReconnect(nil)
	w.client.Disconnect()
}

func (w *WhatsApp) consumeQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			w.session.Pairing(item.Code)
			w.logger.Info("whatsapp_pairing_code", "timeout", item.Timeout)
		case whatsmeow.QRChannelSuccess.Event:
			w.logger.Info("whatsapp_paired")
		case whatsmeow.QRChannelTimeout.Event:
			w.session.Closed("pairing timed out", false)
		case whatsmeow.QRChannelEventError:
			w.session.Closed(fmt.Sprintf("pairing failed: %v", item.Error), false)
		default:
			w.logger.Warn("whatsapp_pairing_event", "event", item.Event)
		}
	}
}

func (w *WhatsApp) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		w.session.Ready()
	case *events.PairSuccess:
		w.logger.Info("whatsapp_pair_success", "jid", v.ID.String())
	case *events.Disconnected:
		w.session.Closed("connection lost", true)
	case *events.LoggedOut:
		w.session.Closed(fmt.Sprintf("logged out: %s", v.Reason.String()), false)
	case *events.StreamReplaced:
		w.session.Closed("session opened elsewhere", false)
	}
}

// reconnect is the session's recovery hook.
func (w *WhatsApp) reconnect() {
	select {
	case <-w.ctx.Done():
		return
	case <-time.After(reconnectBackoff):
	}
	if err := w.Start(); err != nil {
		w.logger.Error("whatsapp_reconnect_failed", "error", err)
		w.session.Closed(err.Error(), true)
	}
}

// Send delivers a text message. address is a phone number in international
// format (symbols ignored) or a full JID such as a group address.
func (w *WhatsApp) Send(ctx context.Context, address, message string) error {
	if !w.IsReady() {
		return errors.New("whatsapp session not ready")
	}
	jid, err := ParseAddress(address)
	if err != nil {
		return err
	}

	resp, err := w.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(message),
	})
	if err != nil {
		return fmt.Errorf("send to %s: %w", jid, err)
	}
	w.logger.Debug("whatsapp_sent", "to", jid.String(), "message_id", resp.ID)
	return nil
}

// ParseAddress turns "+52 1 55 5000 1234" or "120363...@g.us" into a JID.
func ParseAddress(address string) (types.JID, error) {
	address = strings.TrimSpace(address)
	if strings.Contains(address, "@") {
		jid, err := types.ParseJID(address)
		if err != nil {
			return types.JID{}, fmt.Errorf("invalid address %q: %w", address, err)
		}
		return jid, nil
	}

	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, address)
	if digits == "" {
		return types.JID{}, fmt.Errorf("invalid address %q", address)
	}
	return types.NewJID(digits, types.DefaultUserServer), nil
}
