package rules

import (
	"regexp"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
)

// Carrier tracking number shapes shared by every retailer rule.
var (
	upsTrackingPattern   = regexp.MustCompile(`\b(1Z[0-9A-Z]{16})\b`)
	fedexTrackingPattern = regexp.MustCompile(`\b(\d{12,22})\b`)
	uspsTrackingPattern  = regexp.MustCompile(`\b(\d{20,22}|\d{13})\b`)
)

func carrierTrackingPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		upsTrackingPattern,
		fedexTrackingPattern,
		uspsTrackingPattern,
	}
}

// deliveredKeywords are the carrier phrases that show up once a package
// has reached the door.
var deliveredKeywords = []string{
	"delivered",
	"out for delivery",
	"delivery completed",
	"left at the",
	"was delivered",
	"arrived at",
	"delivered on",
	"signature required",
}

// builtinRules returns the rules shipped with the tracker. Registration
// order matters: classification walks this list front to back.
func builtinRules() []*RetailerRule {
	return []*RetailerRule{
		targetRule(),
		amazonRule(),
		walmartRule(),
		bestBuyRule(),
	}
}

// targetRule covers Target.com order, shipping, delivery and
// cancellation notices. Target order numbers are 8-15 digits.
func targetRule() *RetailerRule {
	return &RetailerRule{
		Name: "target",
		IdentitySignals: []string{
			"target.com",
			"orders@target",
			"@target",
		},
		OrderNumberPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)order\s*#?\s*(\d{8,15})`),
			regexp.MustCompile(`(?i)order\s*number[:\s]*(\d{8,15})`),
			regexp.MustCompile(`#(\d{8,15})`),
		},
		TrackingPatterns: carrierTrackingPatterns(),
		StatusIndicators: map[models.OrderStatus][]string{
			models.StatusCancelled: {
				"sorry, we had to cancel",
				"cancel order",
				"canceled",
				"cancelled",
				"your order has been canceled",
				"your order has been cancelled",
				"order was canceled",
				"order was cancelled",
				"we had to cancel",
				"purchase limit exceeded",
				"payment issue",
				"activity not supported",
				"you haven't been charged",
				"system automatically canceled",
			},
			models.StatusDelivered: deliveredKeywords,
			models.StatusShipped: {
				"has shipped",
				"shipped!",
				"is on the way",
				"on its way",
				"track your package",
				"shipping confirmation",
			},
			models.StatusOrdered: {
				"thanks for your order",
				"order confirmation",
				"we got your order",
			},
		},
		AddressPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)Delivers to:\s*(.+,\s*\d{5})`),
		},
		CancelReasons: []CancelReason{
			{Keyword: "purchase limit exceeded", Reason: "Purchase limit exceeded"},
			{Keyword: "payment issue", Reason: "Payment issue"},
			{Keyword: "activity not supported", Reason: "Activity not supported on Target.com"},
			{Keyword: "out of stock", Reason: "Out of stock"},
		},
		CancelReasonPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?is)what went wrong\?\s*(.+?)(?:\*\*|$)`),
			regexp.MustCompile(`(?i)reason[:\s]*([^.\n]+)`),
			regexp.MustCompile(`(?i)because[:\s]*([^.\n]+)`),
			regexp.MustCompile(`(?i)unfortunately[:\s]*([^.\n]+)`),
		},
	}
}

// amazonRule covers Amazon order notifications. Amazon order numbers
// are the 3-7-7 digit form.
func amazonRule() *RetailerRule {
	return &RetailerRule{
		Name: "amazon",
		IdentitySignals: []string{
			"amazon.com",
			"auto-confirm@amazon",
			"ship-confirm@amazon",
			"order-update@amazon",
		},
		OrderNumberPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)order\s*#?\s*(\d{3}-\d{7}-\d{7})`),
			regexp.MustCompile(`#(\d{3}-\d{7}-\d{7})`),
		},
		TrackingPatterns: append(
			[]*regexp.Regexp{regexp.MustCompile(`\b(TBA\d{9,13})\b`)},
			carrierTrackingPatterns()...,
		),
		StatusIndicators: map[models.OrderStatus][]string{
			models.StatusCancelled: {
				"has been canceled",
				"has been cancelled",
				"order canceled",
				"order cancelled",
				"we canceled your order",
			},
			models.StatusDelivered: deliveredKeywords,
			models.StatusShipped: {
				"has shipped",
				"shipped:",
				"on the way",
				"your package is on its way",
				"track your package",
			},
			models.StatusOrdered: {
				"order confirmation",
				"thanks for your order",
				"your amazon.com order",
			},
		},
		AddressPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ship(?:ping)?\s+to:?\s*(.+,\s*\d{5})`),
		},
		CancelReasons: []CancelReason{
			{Keyword: "payment", Reason: "Payment issue"},
			{Keyword: "no longer available", Reason: "Item no longer available"},
		},
		CancelReasonPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)reason[:\s]*([^.\n]+)`),
			regexp.MustCompile(`(?i)because[:\s]*([^.\n]+)`),
		},
	}
}

// walmartRule covers Walmart.com order notifications.
func walmartRule() *RetailerRule {
	return &RetailerRule{
		Name: "walmart",
		IdentitySignals: []string{
			"walmart.com",
			"help@walmart",
		},
		OrderNumberPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)order\s*#?\s*(\d{7}-\d{6,8})`),
			regexp.MustCompile(`(?i)order\s*number[:\s]*(\d{13,15})`),
			regexp.MustCompile(`#(\d{13,15})`),
		},
		TrackingPatterns: carrierTrackingPatterns(),
		StatusIndicators: map[models.OrderStatus][]string{
			models.StatusCancelled: {
				"order has been canceled",
				"order has been cancelled",
				"was canceled",
				"we canceled",
				"couldn't process your payment",
			},
			models.StatusDelivered: deliveredKeywords,
			models.StatusShipped: {
				"has shipped",
				"shipped!",
				"on its way",
				"track shipment",
			},
			models.StatusOrdered: {
				"thanks for your order",
				"order confirmation",
				"we received your order",
			},
		},
		AddressPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)deliver(?:s|y)? to:?\s*(.+,\s*\d{5})`),
		},
		CancelReasons: []CancelReason{
			{Keyword: "payment", Reason: "Payment issue"},
			{Keyword: "out of stock", Reason: "Out of stock"},
		},
		CancelReasonPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)reason[:\s]*([^.\n]+)`),
		},
	}
}

// bestBuyRule covers Best Buy order notifications. BBY01 order numbers
// plus the older all-digit form.
func bestBuyRule() *RetailerRule {
	return &RetailerRule{
		Name: "bestbuy",
		IdentitySignals: []string{
			"bestbuy.com",
			"bestbuyinfo",
			"best buy",
		},
		OrderNumberPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)order\s*(?:number)?[:#\s]*\s*(BBY01-\d{12})`),
			regexp.MustCompile(`(BBY01-\d{12})`),
			regexp.MustCompile(`(?i)order\s*(?:number)?[:#\s]*\s*(\d{10})`),
		},
		TrackingPatterns: carrierTrackingPatterns(),
		StatusIndicators: map[models.OrderStatus][]string{
			models.StatusCancelled: {
				"has been canceled",
				"has been cancelled",
				"order canceled",
				"we canceled your order",
			},
			models.StatusDelivered: deliveredKeywords,
			models.StatusShipped: {
				"has shipped",
				"shipped!",
				"on its way",
				"track your order",
			},
			models.StatusOrdered: {
				"thanks for your order",
				"order confirmation",
				"we're processing your order",
			},
		},
		AddressPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ship(?:ping)?\s+to:?\s*(.+,\s*\d{5})`),
		},
		CancelReasons: []CancelReason{
			{Keyword: "payment", Reason: "Payment issue"},
			{Keyword: "sold out", Reason: "Sold out"},
		},
		CancelReasonPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)reason[:\s]*([^.\n]+)`),
		},
	}
}
