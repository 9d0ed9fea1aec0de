package errors

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v84"
)

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	GatewayCode        string `json:"gateway_code,omitempty"`
	GatewayDeclineCode string `json:"gateway_decline_code,omitempty"`
	GatewayType        string `json:"gateway_type,omitempty"`
	GatewayRequestID   string `json:"gateway_request_id,omitempty"`
	GatewayStatus      int    `json:"gateway_status,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		d.GatewayCode = string(stripeErr.Code)
		d.GatewayDeclineCode = string(stripeErr.DeclineCode)
		d.GatewayType = string(stripeErr.Type)
		d.GatewayRequestID = stripeErr.RequestID
		d.GatewayStatus = stripeErr.HTTPStatusCode
	}

	return d
}
