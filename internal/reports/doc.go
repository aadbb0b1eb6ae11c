// Package reports persists finished transfer reports.
//
// A [Sink] receives each completed [models.TransferReport]. [FileSink] writes
// JSON files to a directory, [MinioSink] archives them in an S3-compatible
// bucket, and [Multi] fans out to several sinks at once.
package reports
