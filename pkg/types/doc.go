/*
Package types defines the core data structures shared across mailvec packages.

Mail is the parsed form of a single message file. ParseMail applies the
accepted field aliases (mail_header/subject, mail_content/content), derives
the tenant domain from user_id when the record omits it, validates the
required fields, and carries optional filter_* properties through an
extra-filters map so schema additions never touch the pipeline core.

Batch is the unit of work: up to BatchMax file paths destined for one tenant,
enqueued, dequeued and processed atomically by a single worker.

ObjectID maps a mail to its vector-object UUID: mail ids that already are
UUIDs pass through verbatim, anything else becomes a deterministic v5 UUID so
re-imports overwrite instead of duplicating.
*/
package types
