package models

import "time"

// APIQuotaUsage is one day's provider quota ledger row.
type APIQuotaUsage struct {
	ID              int64     `db:"id"`
	Date            time.Time `db:"date"`
	QuotaUsed       int       `db:"quota_used"`
	QuotaLimit      int       `db:"quota_limit"`
	OperationsCount int       `db:"operations_count"`
	SearchCalls     int       `db:"search_calls"`
	StatsListCalls  int       `db:"stats_list_calls"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// QuotaInfo summarizes today's quota position.
type QuotaInfo struct {
	QuotaUsed       int `json:"quotaUsed"`
	QuotaLimit      int `json:"quotaLimit"`
	QuotaRemaining  int `json:"quotaRemaining"`
	OperationsCount int `json:"operationsCount"`
}
