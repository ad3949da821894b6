package risk

// DefaultCategories is the built-in trigger set for browser-automation tasks.
// Weights reflect how irreversible the operation is once the agent performs it.
func DefaultCategories() []Category {
	return []Category{
		{
			Name:        "purchase",
			Description: "purchase/payment operation",
			Weight:      1.0,
			Phrases: []string{
				"buy", "purchase", "complete order", "place order",
				"confirm purchase", "complete checkout", "pay now",
				"submit payment", "finalize order", "complete payment",
			},
			URLPatterns: []string{`purchase`, `order/confirm`, `cart/confirm`},
		},
		{
			Name:        "payment_details",
			Description: "payment information entry",
			Weight:      1.0,
			Phrases: []string{
				"enter card", "credit card", "debit card", "card number",
				"cvv", "card details", "payment method", "add payment",
				"enter payment",
			},
			URLPatterns: []string{`payment`, `billing`, `/pay\b`, `transaction`},
		},
		{
			Name:        "transfer",
			Description: "money transfer",
			Weight:      1.0,
			Phrases: []string{
				"transfer money", "send money", "wire transfer",
				"send payment", "transfer funds",
			},
		},
		{
			Name:        "delete",
			Description: "delete/remove operation",
			Weight:      0.95,
			Phrases: []string{
				"delete", "remove account", "close account",
				"cancel subscription", "terminate", "deactivate account",
				"permanently delete", "erase",
			},
		},
		{
			Name:        "checkout",
			Description: "checkout process",
			Weight:      0.9,
			Phrases: []string{
				"checkout", "proceed to checkout", "go to checkout",
				"click checkout", "billing", "payment details",
			},
			URLPatterns: []string{`checkout`},
		},
		{
			Name:        "form_submission",
			Description: "form submission",
			Weight:      0.6,
			Phrases: []string{
				"submit form", "send form", "submit application",
				"submit order", "submit request",
			},
		},
		{
			Name:        "download_install",
			Description: "download/install operation",
			Weight:      0.5,
			Phrases: []string{
				"download", "install", "download file", "save file",
				"install software",
			},
		},
		{
			Name:        "authentication",
			Description: "login/registration",
			Weight:      0.3,
			Phrases: []string{
				"login", "log in", "sign in", "sign up", "register",
				"create account",
			},
		},
		{
			Name:        "account_change",
			Description: "account/profile modification",
			Weight:      0.3,
			Phrases:     []string{"edit", "update", "change", "modify"},
		},
	}
}

func DefaultConfig() Config {
	return Config{
		Categories:     DefaultCategories(),
		EscalationStep: DefaultEscalationStep,
		Thresholds:     DefaultThresholds(),
		ApproveLevels:  []Level{LevelHigh, LevelCritical},
	}
}
