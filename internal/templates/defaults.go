package templates

import "PulseTrigger/internal/models"

// Default returns the built-in storefront campaigns.
// Bodies are html/template sources rendered with the event payload.
func Default() *Registry {
	return NewRegistry(
		models.EmailTemplate{
			ID:          "welcome-1",
			Name:        "Welcome",
			Subject:     "Welcome to the store{{with .name}}, {{.}}{{end}}!",
			Body:        `<h1>Welcome{{with .name}}, {{.}}{{end}}!</h1><p>Your account is ready. Browse the catalog to find your first download.</p>`,
			TriggerType: models.TriggerWelcome,
			DelayHours:  0,
		},
		models.EmailTemplate{
			ID:          "welcome-2",
			Name:        "Welcome follow-up",
			Subject:     "Getting the most out of your downloads",
			Body:        `<p>Hi{{with .name}} {{.}}{{end}}, here are a few tips for managing your library.</p>`,
			TriggerType: models.TriggerWelcome,
			DelayHours:  24,
		},
		models.EmailTemplate{
			ID:          "abandoned-cart-1",
			Name:        "Cart reminder",
			Subject:     "You left something in your cart",
			Body:        `<p>Your cart{{with .cartTotal}} ({{.}}){{end}} is still waiting for you.</p>`,
			TriggerType: models.TriggerAbandonedCart,
			DelayHours:  1,
		},
		models.EmailTemplate{
			ID:          "abandoned-cart-2",
			Name:        "Cart last call",
			Subject:     "Last chance to complete your order",
			Body:        `<p>The items in your cart are still available. Complete your purchase today.</p>`,
			TriggerType: models.TriggerAbandonedCart,
			DelayHours:  24,
		},
		models.EmailTemplate{
			ID:          "recommendation-1",
			Name:        "Recommendations",
			Subject:     "Picked for you",
			Body:        `<p>Based on your recent purchases{{with .productName}} of {{.}}{{end}}, you might like these.</p>`,
			TriggerType: models.TriggerProductRecommendation,
			DelayHours:  72,
		},
		models.EmailTemplate{
			ID:          "purchase-confirmation-1",
			Name:        "Order confirmation",
			Subject:     "Your order{{with .orderId}} {{.}}{{end}} is confirmed",
			Body:        `<p>Thanks for your purchase. Your downloads are available in your library.</p>`,
			TriggerType: models.TriggerPurchaseConfirmation,
			DelayHours:  0,
		},
		models.EmailTemplate{
			ID:          "newsletter-1",
			Name:        "Newsletter",
			Subject:     "{{with .title}}{{.}}{{else}}What's new this week{{end}}",
			Body:        `<div>{{.content}}</div>`,
			TriggerType: models.TriggerNewsletter,
			DelayHours:  0,
		},
	)
}
