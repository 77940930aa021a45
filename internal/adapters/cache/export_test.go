package cache

// PurgeExpired runs one cleanup pass synchronously.
func (s *CredentialStore) PurgeExpired() { s.purgeExpired() }
