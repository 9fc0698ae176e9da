// Package donecode maps carrier DONE_CODE values onto job and coupon states.
package donecode

import (
	"strconv"
	"strings"
)

const (
	LabelUnknown      = "UNKNOWN"
	LabelDelivered    = "DELIVERED"
	LabelGatewayError = "GATEWAY_ERROR"
	LabelAgentError   = "AGENT_ERROR"
	LabelTelcoFailure = "TELCO_FAILURE"
)

type Classification struct {
	Code         string `json:"code"`
	Label        string `json:"label"`
	JobStatus    string `json:"job_status"`
	CouponStatus string `json:"coupon_status"`
	Retryable    bool   `json:"retryable"`
	Description  string `json:"description"`
}

// Delivered reports whether the message reached the handset.
func (c Classification) Delivered() bool {
	return c.Label == LabelDelivered
}

// Classify is total: every input, including garbage, yields a classification.
func Classify(code string) Classification {
	code = strings.TrimSpace(code)

	if code == "" {
		return failed(code, LabelUnknown, true, "no done code received")
	}
	if strings.HasPrefix(code, "0") {
		return Classification{
			Code:         code,
			Label:        LabelDelivered,
			JobStatus:    "COMPLETED",
			CouponStatus: "DELIVERED",
			Description:  "delivered",
		}
	}

	if n, err := strconv.Atoi(code); err == nil {
		switch {
		case (n >= 21000 && n <= 25999) || (n >= 29000 && n <= 29999):
			return failed(code, LabelGatewayError, true, "carrier gateway or network error")
		case n >= 90000 && n <= 99999:
			return failed(code, LabelAgentError, true, "messaging agent error")
		}
	}

	return failed(code, LabelTelcoFailure, false, "subscriber or telco failure")
}

func failed(code, label string, retryable bool, desc string) Classification {
	return Classification{
		Code:         code,
		Label:        label,
		JobStatus:    "FAILED",
		CouponStatus: "FAILED",
		Retryable:    retryable,
		Description:  desc,
	}
}
