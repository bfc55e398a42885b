package mpesa

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"

	"github.com/fatflowers/marketplace/pkg/apperr"
)

type STKCallbackEnvelope struct {
	Body struct {
		STKCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        int    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []MetadataItem `json:"Item"`
	} `json:"CallbackMetadata,omitempty"`
}

// MetadataItem values are numbers or strings depending on the item.
type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

func (c *STKCallback) Success() bool { return c.ResultCode == 0 }

// Metadata flattens CallbackMetadata into a map keyed by item name.
func (c *STKCallback) Metadata() map[string]any {
	out := map[string]any{
		"merchant_request_id": c.MerchantRequestID,
		"result_code":         c.ResultCode,
		"result_desc":         c.ResultDesc,
	}
	if c.CallbackMetadata == nil {
		return out
	}
	for _, it := range c.CallbackMetadata.Item {
		out[it.Name] = it.Value
	}
	return out
}

// ReceiptNumber is the MpesaReceiptNumber item, empty on failed payments.
func (c *STKCallback) ReceiptNumber() string {
	return cast.ToString(c.item("MpesaReceiptNumber"))
}

// Amount is the paid amount as reported by M-Pesa.
func (c *STKCallback) Amount() float64 {
	return cast.ToFloat64(c.item("Amount"))
}

// PhoneNumber is reported as a JSON number; keep every digit.
func (c *STKCallback) PhoneNumber() string {
	v := c.item("PhoneNumber")
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f", f)
	}
	return cast.ToString(v)
}

func (c *STKCallback) item(name string) any {
	if c.CallbackMetadata == nil {
		return nil
	}
	for _, it := range c.CallbackMetadata.Item {
		if it.Name == name {
			return it.Value
		}
	}
	return nil
}

// ParseSTKCallback decodes the body Daraja posts to the STK callback URL.
func ParseSTKCallback(body []byte) (*STKCallback, error) {
	var env STKCallbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperr.Validation("invalid stk callback: %v", err)
	}
	if env.Body.STKCallback == nil || env.Body.STKCallback.CheckoutRequestID == "" {
		return nil, apperr.Validation("stk callback without CheckoutRequestID")
	}
	return env.Body.STKCallback, nil
}

type B2CResultEnvelope struct {
	Result *B2CResult `json:"Result"`
}

type B2CResult struct {
	ResultType               int    `json:"ResultType"`
	ResultCode               int    `json:"ResultCode"`
	ResultDesc               string `json:"ResultDesc"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ConversationID           string `json:"ConversationID"`
	TransactionID            string `json:"TransactionID"`
	ResultParameters         *struct {
		ResultParameter []ResultParameter `json:"ResultParameter"`
	} `json:"ResultParameters,omitempty"`
}

type ResultParameter struct {
	Key   string `json:"Key"`
	Value any    `json:"Value"`
}

func (r *B2CResult) Success() bool { return r.ResultCode == 0 }

func (r *B2CResult) Parameters() map[string]any {
	out := map[string]any{
		"result_type":     r.ResultType,
		"result_code":     r.ResultCode,
		"result_desc":     r.ResultDesc,
		"conversation_id": r.ConversationID,
		"transaction_id":  r.TransactionID,
	}
	if r.ResultParameters == nil {
		return out
	}
	for _, p := range r.ResultParameters.ResultParameter {
		out[p.Key] = p.Value
	}
	return out
}

// TransactionAmount is the amount M-Pesa actually sent.
func (r *B2CResult) TransactionAmount() float64 {
	if r.ResultParameters == nil {
		return 0
	}
	for _, p := range r.ResultParameters.ResultParameter {
		if p.Key == "TransactionAmount" {
			return cast.ToFloat64(p.Value)
		}
	}
	return 0
}

// ParseB2CResult decodes the body Daraja posts to the B2C result URL.
func ParseB2CResult(body []byte) (*B2CResult, error) {
	var env B2CResultEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperr.Validation("invalid b2c result: %v", err)
	}
	if env.Result == nil || env.Result.OriginatorConversationID == "" {
		return nil, apperr.Validation("b2c result without OriginatorConversationID")
	}
	return env.Result, nil
}
