package shared

// Fixed permission vocabulary. Seeded at startup and read-only after;
// role-permission links reference these codes.
const (
	PermUsers        = "users"
	PermPersonalData = "personal_data"
	PermRoles        = "roles"
)

// CoreVocabulary lists every permission the service knows about.
func CoreVocabulary() []string {
	return []string{
		PermUsers,
		PermPersonalData,
		PermRoles,
	}
}
