// Package ants builds command lines for the ANTs tools used by the pipeline:
// antsCorticalThickness.sh, antsRegistration, antsApplyTransforms,
// antsJointFusion, ThresholdImage, ImageMath and LabelGeometryMeasures.
//
// Builders return process.Command values and never run anything themselves.
// Fixed template asset names and the atlas layout under the template
// directory are defined here as well.
package ants
