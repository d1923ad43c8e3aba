package contacts

// MapDirectInput builds a Batch from pasted phone numbers, one per line.
//
// Each non-empty line is reduced to its digits; the record's Name is that raw
// digit string. The country code is prepended whenever it is not already the
// prefix, with no length condition, and validity uses the looser paste
// threshold. This asymmetry with MapContacts is intentional: bulk file
// imports and quick pastes reflect two distinct user intents.
// An empty countryCode falls back to DefaultCountryCode.
func MapDirectInput(text, countryCode string) Batch {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	var batch Batch
	for _, line := range splitLines(text) {
		digits := digitsOnly(line)
		phone, ok := normalizePastePhone(digits, countryCode)
		batch.Contacts = append(batch.Contacts, ContactImport{
			Name:        digits,
			PhoneNumber: phone,
			IsValid:     ok,
		})
	}
	return batch
}
