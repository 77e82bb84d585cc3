// Package instagram holds what igreels knows about the Instagram web
// UI: page URLs, how post links encode shortcodes, username rules, the
// selector catalogue used by the session and extraction code, and the
// schema.org model embedded in post pages.
package instagram
