package domain

// ProvisionResult represents the outcome of preparing one shard database
type ProvisionResult struct {
	ShardIndex int
	Database   string
	Success    bool
	Output     string
	Error      error
}
