package market

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/isoapp/iso_server/internal/notification"
	"github.com/isoapp/iso_server/internal/verification"
)

// Handler exposes the marketplace endpoints.
type Handler struct {
	store    *Store
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewHandler constructs a marketplace HTTP handler. notifier may be nil.
func NewHandler(store *Store, notifier notification.Notifier, logger *slog.Logger) *Handler {
	return &Handler{store: store, notifier: notifier, logger: logger}
}

type results struct {
	Results any `json:"results"`
}

type feedPageResponse struct {
	Results []Post `json:"results"`
	Next    int    `json:"next"`
}

type newPostRequest struct {
	Title          string   `json:"title"`
	PostType       Category `json:"post_type"`
	OwnerID        string   `json:"owner_uuid"`
	TimeType       TimeType `json:"time_type"`
	Tags           []string `json:"tags"`
	LocationString string   `json:"location_string"`
}

type userRequest struct {
	ID    string `json:"uuid"`
	Token string `json:"token"`
}

type claimRequest struct {
	User   userRequest `json:"user"`
	PostID string      `json:"post_uuid"`
}

type startVerificationRequest struct {
	PhoneNumber string `json:"phone_number"`
	Country     string `json:"country"`
}

type checkVerificationRequest struct {
	ID   string `json:"uuid"`
	Code string `json:"code"`
}

// FeedPage returns open posts starting at the :index cursor.
func (h *Handler) FeedPage(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "index must be an integer")
	}
	posts, next, err := h.store.OpenFeed(index)
	if err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusOK).JSON(feedPageResponse{Results: posts, Next: next})
}

// SinglePost returns one post by id.
func (h *Handler) SinglePost(c *fiber.Ctx) error {
	post, err := h.store.PostByID(c.Params("id"))
	if err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusOK).JSON(results{Results: post})
}

// NewPost lists a post at the head of the feed.
func (h *Handler) NewPost(c *fiber.Ctx) error {
	var req newPostRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.PostType != "" && !req.PostType.Valid() {
		return fiber.NewError(http.StatusBadRequest, "post_type must be ISO or OSI")
	}
	if req.TimeType != "" && !req.TimeType.Valid() {
		return fiber.NewError(http.StatusBadRequest, "unknown time_type")
	}

	post := h.store.AddPost(NewPost{
		Title:          req.Title,
		Category:       req.PostType,
		OwnerID:        req.OwnerID,
		TimeType:       req.TimeType,
		Tags:           req.Tags,
		LocationString: req.LocationString,
	})
	h.logger.InfoContext(c.UserContext(), "post added",
		slog.String("post_id", post.ID),
		slog.String("owner_id", post.OwnerID))
	return c.Status(http.StatusCreated).JSON(results{Results: post})
}

// ClaimPost hands a post to the authenticated user and notifies the owner.
func (h *Handler) ClaimPost(c *fiber.Ctx) error {
	var req claimRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	post, err := h.store.ClaimPost(req.PostID, Credentials{UserID: req.User.ID, Token: req.User.Token})
	if err != nil {
		return statusError(err)
	}
	h.logger.InfoContext(c.UserContext(), "post claimed",
		slog.String("post_id", post.ID),
		slog.String("acceptor_id", req.User.ID))

	h.notifyOwner(c.UserContext(), post)
	return c.Status(http.StatusOK).JSON(results{Results: post})
}

func (h *Handler) notifyOwner(ctx context.Context, post Post) {
	if h.notifier == nil {
		return
	}
	owner, err := h.store.UserByID(post.OwnerID)
	if err != nil {
		return
	}
	if err := h.notifier.Send(ctx, notification.PostClaimed(owner.PhoneNumber, post.Title)); err != nil {
		h.logger.WarnContext(ctx, "claim notification failed",
			slog.String("post_id", post.ID),
			slog.Any("error", err))
	}
}

// UserInfo returns the user matching the supplied id and token.
func (h *Handler) UserInfo(c *fiber.Ctx) error {
	var req userRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.store.UserByToken(req.ID, req.Token)
	if err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusOK).JSON(results{Results: user})
}

// StartVerification sends a code to the phone number and returns the user id.
func (h *Handler) StartVerification(c *fiber.Ctx) error {
	var req startVerificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	userID, err := h.store.StartVerification(c.UserContext(), req.PhoneNumber, req.Country)
	if err != nil {
		return statusError(err)
	}
	h.logger.InfoContext(c.UserContext(), "verification started", slog.String("user_id", userID))
	return c.Status(http.StatusOK).JSON(results{Results: userID})
}

// CheckVerification confirms a code and returns the verified user.
func (h *Handler) CheckVerification(c *fiber.Ctx) error {
	var req checkVerificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.store.CheckVerification(c.UserContext(), req.ID, req.Code)
	if err != nil {
		return statusError(err)
	}
	h.logger.InfoContext(c.UserContext(), "user verified", slog.String("user_id", user.ID))
	return c.Status(http.StatusOK).JSON(results{Results: user})
}

// statusError maps domain errors onto HTTP status codes.
func statusError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrUnauthorized), errors.Is(err, verification.ErrVerificationFailed):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrOutOfRange), errors.Is(err, verification.ErrInvalidPhoneNumber):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, verification.ErrProvider):
		return fiber.NewError(http.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
