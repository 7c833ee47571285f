package handler

import (
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/cambohq/marketplace-api/internal/dto"
	"github.com/cambohq/marketplace-api/internal/service"
	"github.com/cambohq/marketplace-api/internal/utils"
)

// ProductHandler exposes marketplace listings over REST.
type ProductHandler struct {
	service service.ProductService
	logger  zerolog.Logger
}

// NewProductHandler creates a product handler instance.
func NewProductHandler(service service.ProductService, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger.With().Str("component", "product_handler").Logger(),
	}
}

// Register binds the product routes under the provided router group.
// Browsing stays public; listing creation and sold-marking require the
// authenticated seller, so those routes carry the protect chain.
func (h *ProductHandler) Register(router fiber.Router, protect ...fiber.Handler) {
	protect = protect[:len(protect):len(protect)]

	router.Get("/", h.list)
	router.Post("/", append(protect, h.create)...)
	router.Get("/:id", h.get)
	router.Patch("/:id/sold", append(protect, h.markSold)...)
}

func (h *ProductHandler) list(c *fiber.Ctx) error {
	products, err := h.service.List(requestContext(c))
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "products", products)
}

func (h *ProductHandler) get(c *fiber.Ctx) error {
	id, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid product id")
	}

	product, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "product", product)
}

func (h *ProductHandler) create(c *fiber.Ctx) error {
	sellerID := userIDFromContext(c)
	if sellerID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.ProductCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "title and price are required")
	}

	images := productImages(c)

	product, err := h.service.Create(requestContext(c), sellerID, payload, images)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "product created", product)
}

func (h *ProductHandler) markSold(c *fiber.Ctx) error {
	sellerID := userIDFromContext(c)
	if sellerID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid product id")
	}

	if err := h.service.MarkSold(requestContext(c), id, sellerID); err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "product marked as sold", nil)
}

func productImages(c *fiber.Ctx) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File["images"]
}
