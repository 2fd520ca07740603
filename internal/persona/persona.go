// Package persona applies the Veltrix voice to routed replies.
package persona

import "github.com/ashureev/veltrix/internal/intent"

type header struct {
	icon  string
	title string
}

var headers = map[intent.Label]header{
	intent.LatestOrder:           {"⚔", "Latest Crossing Retrieved"},
	intent.RecentOrders:          {"📋", "Crossing History"},
	intent.DeliveryTracking:      {"🛰", "Tracking Active"},
	intent.RefundPolicy:          {"📜", "Realm Return Code"},
	intent.CancelOrder:           {"🚫", "Cancellation Protocol"},
	intent.VendorStats:           {"📊", "Vendor Intelligence"},
	intent.ProductRecommendation: {"🎯", "Gear Scan Complete"},
	intent.GeneralAI:             {"🧠", "Veltrix"},
}

// Compose prefixes text with the header for label, addressing userName when
// known. Greeting and name replies, and unknown labels, pass through as is.
func Compose(label intent.Label, text, userName string) string {
	h, ok := headers[label]
	if !ok {
		return text
	}
	name := ""
	if userName != "" {
		name = ", " + userName
	}
	return h.icon + " " + h.title + name + ".\n\n" + text
}
