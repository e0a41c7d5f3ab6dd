package domain

// Logical storage keys, one per entity collection.
const (
	CollectionResidents     = "residents"
	CollectionAnnouncements = "announcements"
	CollectionQRTIDs        = "qrt_ids"
	CollectionCertificates  = "certificates"
	CollectionBlotters      = "blotters"
	CollectionPayments      = "payments"
	CollectionCounters      = "counters"
)
