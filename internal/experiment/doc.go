// Package experiment is the lifecycle manager of a multi-scale experiment.
//
// An Experiment owns a fixed set of scales, the Monte-Carlo configuration
// shared by those scales, and the artifact paths derived from its storage
// root and name. Progress is recorded only on disk: a scale whose parameter
// file exists has been written, a scale whose output file exists has
// completed. Re-opening an experiment after a restart therefore recovers
// exactly which scales still need work.
//
// Failures are always scoped to one scale. WriteAllParameterFiles, RunAll
// and CollectResults attempt every scale and report per-scale outcomes.
package experiment
