package repository

// Repositories bundles the pgx-backed repositories used by the payout services.
type Repositories struct {
	Affiliates    AffiliateRepository
	Conversions   ConversionRepository
	Batches       BatchRepository
	Payouts       PayoutRepository
	Items         PayoutItemRepository
	ProgramConfig ProgramConfigRepository
	Activity      ActivityRepository
	Verifications VerificationRepository
	AdminUsers    AdminUserRepository
	Outbox        OutboxRepository
}

// NewRepositories returns the full set of pgx-backed repositories.
func NewRepositories() Repositories {
	return Repositories{
		Affiliates:    NewAffiliateRepository(),
		Conversions:   NewConversionRepository(),
		Batches:       NewBatchRepository(),
		Payouts:       NewPayoutRepository(),
		Items:         NewPayoutItemRepository(),
		ProgramConfig: NewProgramConfigRepository(),
		Activity:      NewActivityRepository(),
		Verifications: NewVerificationRepository(),
		AdminUsers:    NewAdminUserRepository(),
		Outbox:        NewOutboxRepository(),
	}
}
