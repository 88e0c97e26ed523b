// Package kitti reads the KITTI tracking benchmark as single-object
// tracking sequences.
//
// Layout read from the split root: label_02/%04d.txt (per-scene labels),
// calib/%04d.txt (sensor calibration), velodyne/%04d/%06d.bin (raw scans).
// Labels arrive in the camera frame and are transformed to the velodyne
// frame before anything downstream sees them.
//
// Dependency rule: kitti depends on internal/sot and the pipeline source
// interfaces; never on the tracking layers.
package kitti
