package marketplace

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"sprynt-api/internal/api/apierr"
	"sprynt-api/internal/api/pagination"
	"sprynt-api/internal/app/http/middleware"
	"sprynt-api/internal/domain/marketplace"
	"sprynt-api/internal/infra/storage"
	stripeinfra "sprynt-api/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const downloadURLTTL = 15 * time.Minute

type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, req stripeinfra.CheckoutRequest) (*stripeinfra.CheckoutSession, error)
}

type Handler struct {
	market   *marketplace.Service
	checkout CheckoutCreator
	signer   storage.URLSigner
	appURL   string
	log      *logrus.Entry
}

// NewHandler wires the marketplace routes. signer may be nil when no object
// store is configured; downloads then answer 503.
func NewHandler(market *marketplace.Service, checkout CheckoutCreator, signer storage.URLSigner, appURL string, log *logrus.Entry) *Handler {
	return &Handler{market: market, checkout: checkout, signer: signer, appURL: appURL, log: log}
}

type listingResponse struct {
	marketplace.ListingView
	AverageRating float64 `json:"averageRating"`
}

func present(v marketplace.ListingView) listingResponse {
	return listingResponse{ListingView: v, AverageRating: v.AverageRating()}
}

// List handles GET /api/marketplace?sort=&q=&page=.
func (h *Handler) List(c *gin.Context) {
	page := pagination.Page(c)

	rows, err := h.market.List(c.Request.Context(), marketplace.ListQuery{
		Sort:  c.DefaultQuery("sort", "recent"),
		Query: c.Query("q"),
		Page:  page,
	})
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}

	out := make([]listingResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, present(r))
	}
	c.JSON(http.StatusOK, gin.H{"listings": out, "page": page, "limit": marketplace.PageSize})
}

func (h *Handler) Get(c *gin.Context) {
	v, err := h.market.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listing": present(*v)})
}

// Create handles POST /api/marketplace. Input strings arrive sanitized.
func (h *Handler) Create(c *gin.Context) {
	var body struct {
		ProjectID   string `json:"projectId" binding:"required"`
		Title       string `json:"title" binding:"required,max=120"`
		Description string `json:"description" binding:"max=2000"`
		PriceCents  int64  `json:"priceCents" binding:"gte=0"`
		License     string `json:"license"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apierr.Respond(c, h.log, apierr.Invalid("Invalid listing"))
		return
	}

	listing, err := h.market.Create(c.Request.Context(), middleware.AccountID(c), marketplace.CreateInput{
		ProjectID:   body.ProjectID,
		Title:       body.Title,
		Description: body.Description,
		PriceCents:  body.PriceCents,
		License:     body.License,
	})
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"listing": listing})
}

// Purchase handles POST /api/marketplace/:id/purchase by opening a checkout
// session. The purchase row is written by the payment webhook.
func (h *Handler) Purchase(c *gin.Context) {
	ctx := c.Request.Context()
	buyerID := middleware.AccountID(c)

	listing, seller, err := h.market.ForPurchase(ctx, c.Param("id"), buyerID)
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}

	if listing.PriceCents == 0 {
		_, _, err := h.market.RecordPurchase(ctx, marketplace.PurchaseRecord{
			ListingID:       listing.ID,
			BuyerID:         buyerID,
			PaymentIntentID: "free_" + listing.ID + "_" + buyerID,
		})
		if err != nil {
			apierr.Respond(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"purchased": true})
		return
	}

	split, err := marketplace.SplitAmount(listing.PriceCents, h.market.FeeRateFor(seller))
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}

	req := stripeinfra.CheckoutRequest{
		Item: stripeinfra.LineItem{Name: listing.Title, UnitAmount: listing.PriceCents},
		Metadata: map[string]string{
			stripeinfra.MetaType:      stripeinfra.TypeMarketplacePurchase,
			stripeinfra.MetaListingID: listing.ID,
			stripeinfra.MetaBuyerID:   buyerID,
			stripeinfra.MetaSellerID:  seller.ID,
			stripeinfra.MetaFeeCents:  strconv.FormatInt(split.PlatformFeeCents, 10),
		},
		AccountID:  buyerID,
		SuccessURL: h.appURL + "/marketplace/" + listing.ID + "?purchased=true",
		CancelURL:  h.appURL + "/marketplace/" + listing.ID,
	}
	if seller.PaymentConnectID != nil && *seller.PaymentConnectID != "" {
		req.Destination = *seller.PaymentConnectID
		req.FeeCents = split.PlatformFeeCents
	}

	session, err := h.checkout.CreateCheckout(ctx, req)
	if err != nil {
		apierr.Respond(c, h.log, apierr.External("payments", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkoutUrl": session.URL})
}

// Rate handles POST /api/marketplace/:id/rate.
func (h *Handler) Rate(c *gin.Context) {
	var body struct {
		Rating int `json:"rating" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apierr.Respond(c, h.log, marketplace.ErrInvalidRating)
		return
	}
	if err := h.market.Rate(c.Request.Context(), c.Param("id"), middleware.AccountID(c), body.Rating); err != nil {
		apierr.Respond(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Download handles GET /api/marketplace/:id/download for the seller and
// buyers of the listing.
func (h *Handler) Download(c *gin.Context) {
	ctx := c.Request.Context()
	key, err := h.market.DownloadKey(ctx, c.Param("id"), middleware.AccountID(c))
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}
	if h.signer == nil {
		apierr.Respond(c, h.log, storage.ErrNotConfigured)
		return
	}

	url, err := h.signer.PresignGet(ctx, key, downloadURLTTL)
	if err != nil {
		apierr.Respond(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expiresAt": time.Now().Add(downloadURLTTL).UTC()})
}
