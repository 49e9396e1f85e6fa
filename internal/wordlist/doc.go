// Package wordlist provides the fuzzing wordlist used by ffuf.
//
// A wordlist configured on the command line is used as is. Otherwise the
// wordlist URL is downloaded once into the XDG cache directory and reused by
// later scans.
package wordlist
