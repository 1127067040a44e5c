package cmd

import (
	"errors"

	"todokeep/backup"
	"todokeep/drive"
	"todokeep/internal/utils"
	"todokeep/restore"
	"todokeep/snapshot"
	"todokeep/store"
)

// friendlyError maps the typed error taxonomy to user-facing messages with
// suggestions. The original error stays in the chain for logging and tests.
func friendlyError(err error) error {
	if err == nil {
		return nil
	}

	var validationErr *store.ValidationError
	if errors.As(err, &validationErr) && validationErr.Field == "title" {
		return utils.ErrEmptyTitle()
	}

	var notFoundErr *store.NotFoundError
	if errors.As(err, &notFoundErr) {
		return utils.ErrTaskNotFound(notFoundErr.ID)
	}

	if errors.Is(err, backup.ErrNoBackup) {
		return utils.ErrNoLocalBackup()
	}

	var decodeErr *snapshot.DecodeError
	if errors.As(err, &decodeErr) {
		return utils.ErrBackupCorrupt(decodeErr.Reason)
	}

	var schemaErr *snapshot.UnsupportedSchemaError
	if errors.As(err, &schemaErr) {
		return utils.WrapWithSuggestion(err, "This backup was written by a newer todokeep. Upgrade and retry")
	}

	var invalidErr *restore.InvalidSnapshotError
	if errors.As(err, &invalidErr) {
		return utils.ErrBackupCorrupt(invalidErr.Reason)
	}

	if errors.Is(err, restore.ErrNoRemoteClient) {
		return utils.WrapWithSuggestion(err, "Set drive.client_id in the config to enable remote backups")
	}

	var authErr *drive.AuthError
	if errors.As(err, &authErr) {
		return utils.ErrNotAuthenticated(authErr.Reason)
	}

	var uploadErr *drive.UploadError
	if errors.As(err, &uploadErr) && uploadErr.Err != nil {
		return utils.ErrProviderOffline(uploadErr.Err.Error())
	}
	var listErr *drive.ListError
	if errors.As(err, &listErr) && listErr.Err != nil {
		return utils.ErrProviderOffline(listErr.Err.Error())
	}
	var downloadErr *drive.DownloadError
	if errors.As(err, &downloadErr) && downloadErr.Err != nil {
		return utils.ErrProviderOffline(downloadErr.Err.Error())
	}

	return err
}
