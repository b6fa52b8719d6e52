package identity

// PlaceholderEmail synthesizes a deterministic stand-in address for an
// external subject that asserted no email, so the directory's unique-email
// constraint still applies once per subject. The TLD is RFC 2606 reserved:
// the address can never resolve to a real mailbox.
func PlaceholderEmail(p Provider, subjectID string) string {
	return string(p) + "_" + subjectID + "@" + string(p) + ".placeholder.invalid"
}
