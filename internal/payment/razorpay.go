package payment

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

type RazorpayGateway struct {
	client    *razorpay.Client
	keyID     string
	keySecret string
}

func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	return &RazorpayGateway{
		client:    razorpay.NewClient(keyID, keySecret),
		keyID:     keyID,
		keySecret: keySecret,
	}
}

// CreateOrder opens a gateway order with auto-capture enabled. Amount is in
// minor currency units (paise).
func (g *RazorpayGateway) CreateOrder(ctx context.Context, appointmentID string, amount int64, currency string) (*GatewayOrder, error) {
	_ = ctx // the razorpay client does not take a context

	data := map[string]interface{}{
		"amount":          amount,
		"currency":        currency,
		"payment_capture": 1,
		"notes": map[string]interface{}{
			"appointmentId": appointmentID,
		},
	}

	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreateFailed, err)
	}

	orderID, ok := body["id"].(string)
	if !ok || orderID == "" {
		return nil, fmt.Errorf("%w: response missing order id", ErrOrderCreateFailed)
	}

	return &GatewayOrder{OrderID: orderID, KeyID: g.keyID}, nil
}

// VerifySignature checks the HMAC-SHA256 signature the widget returned for
// a captured payment.
func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	params := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
		"razorpay_signature":  signature,
	}
	return utils.VerifyPaymentSignature(params, signature, g.keySecret)
}
