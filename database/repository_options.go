package database

// RepositoryOptions controls the managed behavior of a repository.
type RepositoryOptions struct {
	// Created maintains a "created" timestamp on insert.
	Created bool
	// Modified maintains a "modified" timestamp on every update.
	Modified bool
	// Deleted enables soft deletes: deletions set a "deleted" timestamp and
	// reads filter soft-deleted documents out.
	Deleted bool
	// Validate runs struct validation before inserts and upserts.
	Validate bool
}

// UpdateOptions marks which managed timestamps an update operation touches.
type UpdateOptions struct {
	Insert bool
	Update bool
}
