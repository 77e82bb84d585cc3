// Package checkpoint saves run progress so an interrupted scrape can resume.
//
// A checkpoint belongs to one ordered account list. After each account is
// processed its post details are recorded and the file is rewritten
// atomically; a resumed run skips the completed accounts and starts from the
// stored partial result. The file is deleted once a run finishes.
package checkpoint
