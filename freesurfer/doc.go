// Package freesurfer builds the recon-all command line and names the files a
// finished reconstruction leaves in its subject directory.
package freesurfer
