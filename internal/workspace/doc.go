// Package workspace lays out the artifact directory of a scan.
//
// Every target shares the same four subdirectories under the output root:
//
//	<root>/Subdomains     <target>.subs, <target>.httpprobe
//	<root>/WebAppContent  per-tool URL lists, <target>.urls, <target>.extended_urls
//	<root>/Vulns          <target>.nuclei.json
//	<root>/Reports        <target>_report_<YYYYMMDD_HHMMSS>.json
//
// Artifacts are line-delimited text files; ReadLines and WriteLines are the
// only way the pipeline touches them.
package workspace
