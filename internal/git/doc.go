// Package git answers the three questions source-control mode asks of a repository:
// is the tool usable, where is the repository and what is HEAD, and which paths changed
// between a recorded commit and HEAD.
//
// Two backends implement Repository:
//   - CLI shells out to the installed git binary and inspects exit status only
//   - Native uses go-git and needs no binary
//
// Failures are classified: a missing tool or a directory outside any repository is a
// precondition error; any other failure of the tool is an external_tool error carrying
// the tool's output as context.
package git
