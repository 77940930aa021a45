package web

import (
	"context"
	"errors"
	"time"

	"tweet-cleaner/internal/adapters/browser"
	"tweet-cleaner/internal/adapters/cache"
	"tweet-cleaner/internal/adapters/options"
	"tweet-cleaner/internal/domain"
	"tweet-cleaner/internal/usecases"
	"tweet-cleaner/pkg/log"

	"github.com/gofiber/fiber/v2"
)

var errStartRateLimited = errors.New("too many run starts")

// captureTimeout bounds POST /api/credentials/capture.
const captureTimeout = 90 * time.Second

// Handlers contains the HTTP handlers for the control API.
type Handlers struct {
	store    *cache.CredentialStore
	provider *usecases.CredentialProvider
	options  *options.Store
	runs     *Tracker
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store *cache.CredentialStore, provider *usecases.CredentialProvider, opts *options.Store, runs *Tracker) *Handlers {
	return &Handlers{
		store:    store,
		provider: provider,
		options:  opts,
		runs:     runs,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// fail writes a JSON error with a neutral, non-blaming message.
func fail(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(errorResponse{Error: friendlyError(err)})
}

type statusResponse struct {
	Credentials cache.Status `json:"credentials"`
	Run         *RunSnapshot `json:"run,omitempty"`
	OptionsFile string       `json:"options_file"`
}

// Status reports credential freshness and the latest run.
func (h *Handlers) Status(c *fiber.Ctx) error {
	resp := statusResponse{
		Credentials: h.store.Status(),
		OptionsFile: h.options.Path(),
	}
	if snap, ok := h.runs.Current(); ok {
		resp.Run = &snap
	}
	return c.JSON(resp)
}

// SetCredentials stores a bundle pasted by the user.
func (h *Handlers) SetCredentials(c *fiber.Ctx) error {
	var creds domain.Credentials
	if err := c.BodyParser(&creds); err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}
	if err := creds.Validate(); err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}
	if creds.CapturedAt.IsZero() {
		creds.CapturedAt = time.Now()
	}

	h.store.Set(creds)
	log.GlobalInfoCtx(c.UserContext(), "credentials stored", "user_id", creds.UserID, "query_id", creds.QueryID)
	return c.JSON(h.store.Status())
}

// CaptureCredentials drives the browser to capture a fresh bundle.
func (h *Handlers) CaptureCredentials(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), captureTimeout)
	defer cancel()

	if _, err := h.provider.Refresh(ctx); err != nil {
		log.GlobalErrorCtx(ctx, "credential capture failed", "error", err)
		return fail(c, statusFor(err), err)
	}
	return c.JSON(h.store.Status())
}

// GetOptions returns the persisted harvest options.
func (h *Handlers) GetOptions(c *fiber.Ctx) error {
	return c.JSON(h.options.Current())
}

// PutOptions replaces the persisted harvest options.
func (h *Handlers) PutOptions(c *fiber.Ctx) error {
	opts := domain.DefaultHarvestOptions()
	if err := c.BodyParser(&opts); err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}
	ids, err := ParseTweetRefs(opts.IDs)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}
	opts.IDs = ids

	if err := h.options.Save(opts); err != nil {
		log.GlobalWarnCtx(c.UserContext(), "options rejected", "error", err)
		return fail(c, statusFor(err), err)
	}
	return c.JSON(h.options.Current())
}

type startRequest struct {
	IDs     []string               `json:"ids"`
	Options *domain.HarvestOptions `json:"options"`
}

// StartRun starts a cleaning run with the persisted options, or with the
// options and ids given in the body.
func (h *Handlers) StartRun(c *fiber.Ctx) error {
	var req startRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, err)
		}
	}

	opts := h.options.Current()
	if req.Options != nil {
		if err := options.Validate(*req.Options); err != nil {
			return fail(c, fiber.StatusBadRequest, err)
		}
		opts = *req.Options
	}
	if len(req.IDs) > 0 {
		ids, err := ParseTweetRefs(req.IDs)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, err)
		}
		opts.IDs = ids
	}

	ctx := c.UserContext()
	creds, err := h.provider.Credentials(ctx)
	if err != nil {
		log.GlobalWarnCtx(ctx, "cannot start run without credentials", "error", err)
		return fail(c, statusFor(err), err)
	}

	snap, err := h.runs.Start(creds, opts)
	if err != nil {
		return fail(c, statusFor(err), err)
	}
	log.GlobalInfoCtx(ctx, "run accepted", "run_id", snap.ID)
	return c.Status(fiber.StatusAccepted).JSON(snap)
}

// CurrentRun returns the latest run.
func (h *Handlers) CurrentRun(c *fiber.Ctx) error {
	snap, ok := h.runs.Current()
	if !ok {
		return fail(c, fiber.StatusNotFound, errNoRun)
	}
	return c.JSON(snap)
}

// CancelRun cancels the active run.
func (h *Handlers) CancelRun(c *fiber.Ctx) error {
	if !h.runs.Cancel() {
		return fail(c, fiber.StatusNotFound, errNoRun)
	}
	log.GlobalInfoCtx(c.UserContext(), "run cancel requested")
	snap, _ := h.runs.Current()
	return c.Status(fiber.StatusAccepted).JSON(snap)
}

var errNoRun = errors.New("no run")

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrMissingCredentials), errors.Is(err, domain.ErrStaleCredentials):
		return fiber.StatusPreconditionFailed
	case errors.Is(err, options.ErrInvalidOptions), errors.Is(err, domain.ErrInvalidTweetRef):
		return fiber.StatusBadRequest
	case errors.Is(err, browser.ErrNoTimelineRequest), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// friendlyError returns a neutral, non-blaming error message.
func friendlyError(err error) string {
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		return "A cleaning run is already in progress. Wait for it to finish or cancel it."
	case errors.Is(err, domain.ErrMissingCredentials):
		return "No session captured yet. Open your profile in the browser or paste credentials."
	case errors.Is(err, domain.ErrStaleCredentials):
		return "The captured session is too old. Capture it again."
	case errors.Is(err, browser.ErrNoTimelineRequest):
		return "No timeline request was seen. Make sure the browser profile is logged in."
	case errors.Is(err, domain.ErrInvalidTweetRef):
		return "That doesn't look like a tweet id or link: " + err.Error()
	case errors.Is(err, options.ErrInvalidOptions):
		return err.Error()
	case errors.Is(err, errStartRateLimited):
		return "Too many runs started. Please wait a moment and try again."
	case errors.Is(err, errNoRun):
		return "No cleaning run has been started."
	case errors.Is(err, context.DeadlineExceeded):
		return "That took too long. Please try again."
	default:
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return fe.Message
		}
		return "Something went wrong. Please try again in a moment."
	}
}
