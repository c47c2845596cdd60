package api

const (
	// Prefixes all keys in the database (TRAITS, ITEMS, INVENTORY)
	TRAITS    = "TRT"
	ITEMS     = "ITM"
	INVENTORY = "INV"

	// Additional key parts
	COLLECTIONS = "COLLECTIONS"
)
