package exotel

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"callcenter-platform/internal/config"

	"github.com/google/uuid"
)

// ErrMissingCredentials is a configuration-class error: credentials are
// resolved lazily at the point of first use, not at startup.
var ErrMissingCredentials = errors.New("exotel: api key, token and account sid must be configured")

// WebhookToken derives the verification token embedded in webhook callback
// URLs: the hex MD5 of "key:token". The same value is recomputed by the
// webhook guard on every inbound delivery.
func WebhookToken(apiKey, apiToken string) string {
	sum := md5.Sum([]byte(apiKey + ":" + apiToken))
	return hex.EncodeToString(sum[:])
}

// CallbackStore persists initial callback records from immediate API
// responses so a row exists even if the eventual webhook is lost.
type CallbackStore interface {
	RecordInitialCall(ctx context.Context, d CallDetail) error
	RecordInitialSMS(ctx context.Context, d SMSDetail) error
}

// Service exposes the outbound provider operations to the rest of the
// application. All provider traffic funnels through the rate limiter and
// the retrying executor.
type Service struct {
	cfg           config.ExotelConfig
	publicBaseURL string

	client  *Client
	limiter *Limiter
	store   CallbackStore

	// correlationID is a fixed per-process random token embedded in
	// callback URLs; webhookToken is MD5(key:token). Both are part of the
	// webhook URL path contract.
	correlationID string
	webhookToken  string

	log *slog.Logger
}

func NewService(cfg config.ExotelConfig, publicBaseURL string, client *Client, limiter *Limiter, store CallbackStore, log *slog.Logger) *Service {
	return &Service{
		cfg:           cfg,
		publicBaseURL: publicBaseURL,
		client:        client,
		limiter:       limiter,
		store:         store,
		correlationID: uuid.NewString(),
		webhookToken:  WebhookToken(cfg.APIKey, cfg.APIToken),
		log:           log,
	}
}

func (s *Service) creds() (Credentials, error) {
	if s.cfg.APIKey == "" || s.cfg.APIToken == "" || s.cfg.AccountSID == "" {
		return Credentials{}, ErrMissingCredentials
	}
	return Credentials{
		APIKey:     s.cfg.APIKey,
		APIToken:   s.cfg.APIToken,
		AccountSID: s.cfg.AccountSID,
		Subdomain:  s.cfg.Subdomain,
	}, nil
}

// callbackURL builds the deterministic status-callback URL for a webhook
// kind ("call-callback" or "sms-callback").
func (s *Service) callbackURL(kind string) string {
	return fmt.Sprintf("%s/webhooks/exotel/%s/%s/%s", s.publicBaseURL, kind, s.correlationID, s.webhookToken)
}

// SendSMS sends one SMS from the default ExoPhone.
// The provider's immediate response is persisted fire-and-forget.
func (s *Service) SendSMS(ctx context.Context, to, body string) (SMSDetail, error) {
	creds, err := s.creds()
	if err != nil {
		return SMSDetail{}, err
	}
	if to == "" || body == "" {
		return SMSDetail{}, errors.New("exotel: to and body are required")
	}

	form := map[string]string{
		"From":           s.cfg.FromNumber,
		"To":             to,
		"Body":           body,
		"StatusCallback": s.callbackURL("sms-callback"),
	}

	var out SMSResponse
	err = s.limiter.Do(ctx, QueueSMS, func(ctx context.Context) error {
		return s.client.PostForm(ctx, creds, creds.BaseURL()+"/Sms/send.json", form, &out)
	})
	if err != nil {
		return SMSDetail{}, err
	}

	go s.persistInitialSMS(out.SMSMessage)
	return out.SMSMessage, nil
}

// ConnectCalls bridges two parties: the provider dials `from` first
// (typically the agent), then `to` (the customer), with the default
// ExoPhone as caller id.
func (s *Service) ConnectCalls(ctx context.Context, from, to string) (CallDetail, error) {
	creds, err := s.creds()
	if err != nil {
		return CallDetail{}, err
	}
	if from == "" || to == "" {
		return CallDetail{}, errors.New("exotel: from and to are required")
	}

	form := map[string]string{
		"From":                    from,
		"To":                      to,
		"CallerId":                s.cfg.FromNumber,
		"Record":                  "true",
		"StatusCallback":          s.callbackURL("call-callback"),
		"StatusCallbackEvents[0]": "terminal",
	}
	return s.placeCall(ctx, creds, form)
}

// PlaceCall dials a number and drops it into a provider-side voice flow.
// Flow graphs are reference data; execution happens on the provider.
func (s *Service) PlaceCall(ctx context.Context, to, flowID string) (CallDetail, error) {
	creds, err := s.creds()
	if err != nil {
		return CallDetail{}, err
	}
	if to == "" || flowID == "" {
		return CallDetail{}, errors.New("exotel: to and flow id are required")
	}

	form := map[string]string{
		"From":                    to,
		"CallerId":                s.cfg.FromNumber,
		"Url":                     fmt.Sprintf("http://my.exotel.com/%s/exoml/start_voice/%s", creds.AccountSID, flowID),
		"StatusCallback":          s.callbackURL("call-callback"),
		"StatusCallbackEvents[0]": "terminal",
	}
	return s.placeCall(ctx, creds, form)
}

func (s *Service) placeCall(ctx context.Context, creds Credentials, form map[string]string) (CallDetail, error) {
	var out CallResponse
	err := s.limiter.Do(ctx, QueueVoice, func(ctx context.Context) error {
		return s.client.PostForm(ctx, creds, creds.BaseURL()+"/Calls/connect.json", form, &out)
	})
	if err != nil {
		return CallDetail{}, err
	}

	go s.persistInitialCall(out.Call)
	return out.Call, nil
}

// FetchHeartbeat polls the provider health endpoint. Not rate limited;
// the monitor's own schedule bounds its frequency.
func (s *Service) FetchHeartbeat(ctx context.Context) (HeartbeatStatus, error) {
	creds, err := s.creds()
	if err != nil {
		return HeartbeatStatus{}, err
	}
	var out HeartbeatStatus
	if err := s.client.GetJSON(ctx, creds, creds.BaseURL()+"/HeartBeat.json", nil, &out); err != nil {
		return HeartbeatStatus{}, err
	}
	return out, nil
}

const listPageSize = 100

// ListCalls fetches the bulk call-detail report for a time window,
// following pagination. Goes through the voice queue: a big window can be
// many pages and must not starve interactive call placement of quota.
func (s *Service) ListCalls(ctx context.Context, from, to time.Time) ([]CallDetail, error) {
	creds, err := s.creds()
	if err != nil {
		return nil, err
	}

	var all []CallDetail
	for page := 0; ; page++ {
		query := map[string]string{
			"DateCreated": fmt.Sprintf("gte:%s;lte:%s", from.Format("2006-01-02 15:04:05"), to.Format("2006-01-02 15:04:05")),
			"PageSize":    strconv.Itoa(listPageSize),
			"Page":        strconv.Itoa(page),
		}

		var out CallListResponse
		err := s.limiter.Do(ctx, QueueVoice, func(ctx context.Context) error {
			return s.client.GetJSON(ctx, creds, creds.BaseURL()+"/Calls.json", query, &out)
		})
		if err != nil {
			return nil, err
		}

		all = append(all, out.Calls...)
		if len(out.Calls) < listPageSize {
			return all, nil
		}
	}
}

// FetchExoPhones pulls the account's virtual-number inventory, in the
// provider's own ordering.
func (s *Service) FetchExoPhones(ctx context.Context) ([]ExoPhone, error) {
	creds, err := s.creds()
	if err != nil {
		return nil, err
	}

	var out ExoPhoneListResponse
	err = s.limiter.Do(ctx, QueueVoice, func(ctx context.Context) error {
		return s.client.GetJSON(ctx, creds, creds.BaseURL()+"/IncomingPhoneNumbers.json", nil, &out)
	})
	if err != nil {
		return nil, err
	}
	return out.IncomingPhoneNumbers, nil
}

// persistInitialCall and persistInitialSMS run detached from the request
// path: their failure is logged, never awaited or propagated.

func (s *Service) persistInitialCall(d CallDetail) {
	if s.store == nil || d.Sid == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.RecordInitialCall(ctx, d); err != nil {
		s.log.Error("initial call record persist failed", "call_sid", d.Sid, "err", err)
	}
}

func (s *Service) persistInitialSMS(d SMSDetail) {
	if s.store == nil || d.Sid == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.RecordInitialSMS(ctx, d); err != nil {
		s.log.Error("initial sms record persist failed", "sms_sid", d.Sid, "err", err)
	}
}
