/*
Package ldap provides the directory record model shared by every interchange format.

# Records

A Record is one directory entry or change operation:

  - Content: plain entry content (LDIF without changetype, DSML v1 entry)
  - Add, Delete, Modify, Rename: change records (LDIF changetype, DSML v2 requests)

Attributes keep insertion order and are looked up case-insensitively. Values
accumulate per attribute name and are either text or raw bytes. Modify records
carry an ordered list of modification items; rename records carry the new RDN,
an optional new superior and the delete-old-RDN flag. Controls are kept in the
order they were attached.

The Record enforces its own invariants at mutation time:

  - Delete, Modify and Rename records reject content attributes
  - "dn" is never accepted as an attribute name

# Presentation Order

ToStream drives a StreamWriter with objectClass first, then the attribute named
by the leftmost RDN, then every other attribute in stored order.

# Error Handling

All failures are reported as *Error with an ErrorCategory:

  - grammar_violation, missing_attribute, duplicate_attribute
  - unsupported_version, unknown_change_operation, protocol_violation
  - malformed_reference, io_failure, unsupported_format

Each category has a sentinel (ErrGrammarViolation, ...) usable with errors.Is.

# go-ldap Bridging

Record.Request builds the go-ldap request that replays a record against a
directory.

# Logging

Logger is implemented by TFLogger (terraform-plugin-log subsystems),
ZerologLogger and NopLogger.
*/
package ldap
