package models

// All returns every model owned by this service, for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&UserSpins{},
		&DeviceFingerprint{},
		&Offer{},
		&ScratchedOffer{},
		&OfferClick{},
		&OfferEvent{},
		&PostbackLog{},
		&WalletTransaction{},
		&WalletBalance{},
		&Withdrawal{},
		&Referral{},
		&AppSetting{},
	}
}
