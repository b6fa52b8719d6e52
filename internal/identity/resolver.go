package identity

// ResolveProvider returns the canonical provider that originally created an
// account. Pure and deterministic so the same decision is reproducible on
// every path that needs it.
//
// Precedence, first match wins:
//  1. an explicit "email" linked identity or legacy tag (password-first
//     accounts keep the email lock even after SSO links are added)
//  2. an explicit "line" linked identity or legacy tag
//  3. an explicit "google" linked identity or legacy tag
//  4. default "email"
func ResolveProvider(rec AuthRecord) Provider {
	if rec.has(ProviderEmail) {
		return ProviderEmail
	}
	if rec.has(ProviderLine) {
		return ProviderLine
	}
	if rec.has(ProviderGoogle) {
		return ProviderGoogle
	}
	return ProviderEmail
}

func (rec AuthRecord) has(p Provider) bool {
	if rec.LegacyProvider == p {
		return true
	}
	for _, li := range rec.Linked {
		if li.Provider == p {
			return true
		}
	}
	return false
}
