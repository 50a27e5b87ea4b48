// Package reliability provides cache backup and maintenance services.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mstavrou/macrodash/internal/cache"
	"github.com/mstavrou/macrodash/internal/config"
	"github.com/mstavrou/macrodash/internal/domain"
	"github.com/rs/zerolog"
)

const backupPrefix = "macrodash-backup-"

// BackupService snapshots the frequency cache and uploads the archive to
// an S3-compatible bucket. Snapshots let a fresh install skip the initial
// cold-start fetch against the upstream providers.
type BackupService struct {
	client        *S3Client
	cache         *cache.Cache
	dataDir       string
	retentionDays int
	log           zerolog.Logger
}

// BackupMetadata describes the contents of a backup archive.
type BackupMetadata struct {
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
	Tiers     []TierMetadata `json:"tiers"`
}

// TierMetadata describes a single frequency tier in the backup.
type TierMetadata struct {
	Frequency string    `json:"frequency"`
	Filename  string    `json:"filename"`
	Series    int       `json:"series"`
	FetchedAt time.Time `json:"fetched_at"`
	Fallback  bool      `json:"fallback"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
}

// BackupInfo represents a backup stored in the bucket.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// tierSnapshot is the on-disk form of a cached tier inside the archive.
type tierSnapshot struct {
	Frequency string         `json:"frequency"`
	FetchedAt time.Time      `json:"fetched_at"`
	Fallback  bool           `json:"fallback"`
	Payload   domain.Payload `json:"payload"`
}

// NewBackupService creates the backup service from configuration.
func NewBackupService(cfg *config.Config, c *cache.Cache, log zerolog.Logger) (*BackupService, error) {
	client, err := NewS3Client(
		context.Background(),
		cfg.Backup.Endpoint,
		cfg.Backup.Region,
		cfg.Backup.Bucket,
		cfg.Backup.AccessKeyID,
		cfg.Backup.SecretAccessKey,
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &BackupService{
		client:        client,
		cache:         c,
		dataDir:       cfg.DataDir,
		retentionDays: cfg.Backup.RetentionDays,
		log:           log.With().Str("service", "backup").Logger(),
	}, nil
}

// CreateAndUploadBackup snapshots every populated tier and uploads a
// tar.gz archive to the bucket.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) error {
	s.log.Info().Msg("Starting cache backup")
	startTime := time.Now()

	stagingDir := filepath.Join(s.dataDir, "backup-staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	metadata := BackupMetadata{
		Timestamp: time.Now().UTC(),
		Version:   "1.0.0",
		Tiers:     make([]TierMetadata, 0, len(domain.Frequencies)),
	}

	var files []string
	for _, freq := range domain.Frequencies {
		entry, err := s.cache.Read(ctx, freq)
		if err != nil {
			return fmt.Errorf("failed to read %s tier: %w", freq, err)
		}
		if entry.Empty() {
			s.log.Debug().Str("frequency", string(freq)).Msg("Skipping empty tier")
			continue
		}

		filename := string(freq) + ".json"
		snapshotPath := filepath.Join(stagingDir, filename)
		if err := writeSnapshot(snapshotPath, tierSnapshot{
			Frequency: string(freq),
			FetchedAt: entry.FetchedAt,
			Fallback:  entry.Fallback,
			Payload:   entry.Payload,
		}); err != nil {
			return fmt.Errorf("failed to write %s snapshot: %w", freq, err)
		}

		info, err := os.Stat(snapshotPath)
		if err != nil {
			return fmt.Errorf("failed to stat %s snapshot: %w", freq, err)
		}
		checksum, err := fileChecksum(snapshotPath)
		if err != nil {
			return fmt.Errorf("failed to checksum %s snapshot: %w", freq, err)
		}

		metadata.Tiers = append(metadata.Tiers, TierMetadata{
			Frequency: string(freq),
			Filename:  filename,
			Series:    len(entry.Payload),
			FetchedAt: entry.FetchedAt,
			Fallback:  entry.Fallback,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
		files = append(files, filename)
	}

	if len(files) == 0 {
		s.log.Info().Msg("Cache is empty, nothing to back up")
		return nil
	}

	metadataPath := filepath.Join(stagingDir, "backup-metadata.json")
	if err := writeJSONFile(metadataPath, metadata); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	files = append(files, "backup-metadata.json")

	archiveName := fmt.Sprintf("%s%s.tar.gz", backupPrefix, time.Now().Format("2006-01-02-150405"))
	archivePath := filepath.Join(stagingDir, archiveName)
	if err := createArchive(archivePath, stagingDir, files); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.client.Upload(ctx, archiveName, archiveFile); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Int64("size_kb", archiveInfo.Size()/1024).
		Int("tiers", len(metadata.Tiers)).
		Msg("Cache backup completed successfully")

	return nil
}

// ListBackups lists all backups stored in the bucket, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.client.List(ctx, backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	now := time.Now()

	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}

		filename := *obj.Key
		if !strings.HasPrefix(filename, backupPrefix) || !strings.HasSuffix(filename, ".tar.gz") {
			continue
		}

		timestampStr := strings.TrimPrefix(filename, backupPrefix)
		timestampStr = strings.TrimSuffix(timestampStr, ".tar.gz")

		timestamp, err := time.Parse("2006-01-02-150405", timestampStr)
		if err != nil {
			s.log.Warn().Str("filename", filename).Msg("Failed to parse timestamp from filename")
			continue
		}

		var sizeBytes int64
		if obj.Size != nil {
			sizeBytes = *obj.Size
		}

		backups = append(backups, BackupInfo{
			Filename:  filename,
			Timestamp: timestamp,
			SizeBytes: sizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups deletes backups older than the retention period.
// Keeps a minimum of 3 backups regardless of age.
func (s *BackupService) RotateOldBackups(ctx context.Context) error {
	s.log.Info().Int("retention_days", s.retentionDays).Msg("Starting backup rotation")

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	const minBackupsToKeep = 3
	if len(backups) <= minBackupsToKeep {
		s.log.Info().Int("count", len(backups)).Msg("Too few backups to rotate")
		return nil
	}

	var cutoffTime time.Time
	if s.retentionDays > 0 {
		cutoffTime = time.Now().AddDate(0, 0, -s.retentionDays)
	}

	deletedCount := 0
	for i, backup := range backups {
		// Always keep the newest minBackupsToKeep.
		if i < minBackupsToKeep {
			continue
		}

		// Retention of 0 keeps everything beyond the minimum.
		if s.retentionDays == 0 {
			continue
		}

		if backup.Timestamp.Before(cutoffTime) {
			if err := s.client.Delete(ctx, backup.Filename); err != nil {
				s.log.Error().
					Err(err).
					Str("filename", backup.Filename).
					Msg("Failed to delete old backup")
				continue
			}

			s.log.Info().
				Str("filename", backup.Filename).
				Time("timestamp", backup.Timestamp).
				Msg("Deleted old backup")

			deletedCount++
		}
	}

	s.log.Info().
		Int("deleted", deletedCount).
		Int("remaining", len(backups)-deletedCount).
		Msg("Backup rotation completed")

	return nil
}

func writeSnapshot(path string, snapshot tierSnapshot) error {
	return writeJSONFile(path, snapshot)
}

func writeJSONFile(path string, v interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func createArchive(archivePath, sourceDir string, filenames []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, filename := range filenames {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, filename), filename); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filename, err)
		}
	}

	return nil
}

func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tarWriter, file)
	return err
}
