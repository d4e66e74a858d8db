package waitingroom

import (
	"flashsale-gateway/waitingroom/domain"

	"github.com/shopspring/decimal"
)

func init() {
	// preços saem como número no JSON, não como string
	decimal.MarshalJSONWithoutQuotes = true
}

type enterRequest struct {
	ProductID int64 `json:"productId"`
}

type enterResponse struct {
	Token                string `json:"token"`
	Position             uint64 `json:"position"`
	EstimatedWaitSeconds int64  `json:"estimatedWaitSeconds"`
	Message              string `json:"message"`
}

type statusResponse struct {
	Position             uint64 `json:"position"`
	EstimatedWaitSeconds int64  `json:"estimatedWaitSeconds"`
	CanPurchase          bool   `json:"canPurchase"`
	Expired              bool   `json:"expired"`
	SoldOut              bool   `json:"soldOut"`
	Message              string `json:"message"`
}

type purchaseRequest struct {
	ProductID int64  `json:"productId"`
	Quantity  *int   `json:"quantity"`
	Token     string `json:"token"`
}

type purchaseResponse struct {
	OrderID     int64           `json:"orderId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	Message     string          `json:"message"`
}

type saleResponse struct {
	SaleActive bool `json:"saleActive"`
}

type productResponse struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	OriginalPrice   decimal.Decimal `json:"originalPrice"`
	DiscountedPrice decimal.Decimal `json:"discountedPrice"`
	DiscountRate    int             `json:"discountRate"`
	Stock           int             `json:"stock"`
	ImageURL        string          `json:"imageUrl"`
	Category        string          `json:"category"`
	IsSaleActive    bool            `json:"isSaleActive"`
}

func toProductResponse(v domain.ProductView) productResponse {
	return productResponse{
		ID:              int64(v.ID),
		Name:            v.Name,
		Description:     v.Description,
		OriginalPrice:   v.OriginalPrice,
		DiscountedPrice: v.DiscountedPrice,
		DiscountRate:    v.DiscountRate,
		Stock:           v.Stock,
		ImageURL:        v.ImageURL,
		Category:        v.Category,
		IsSaleActive:    v.SaleActive,
	}
}

func toStatusResponse(st domain.QueueStatus) statusResponse {
	resp := statusResponse{
		Position:             st.Position,
		EstimatedWaitSeconds: waitSeconds(st.EstimatedWait),
		CanPurchase:          st.CanPurchase,
		Expired:              st.Expired,
		SoldOut:              st.SoldOut,
	}
	switch {
	case st.CanPurchase:
		resp.Message = "You can purchase now!"
	case st.Expired:
		resp.Message = "Your place in the queue expired. Please enter again."
	case st.SoldOut:
		resp.Message = "Sold out."
	default:
		resp.Message = "You are number " + formatInt(int(st.Position)) +
			" in line. Estimated wait: " + formatInt(int(resp.EstimatedWaitSeconds)) + "s"
	}
	return resp
}
