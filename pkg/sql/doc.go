// Package sql renders analytics SQL templates and provides the escaping helpers
// shared with the funnel compiler.
package sql

/*
Template Syntax

Templates are BigQuery SQL with two kinds of Metabase-style markup:

	{{name}}        a placeholder
	[[ ... ]]       an optional block, kept or dropped as a whole

# Placeholders

	{{entity_id}} / {{website_id}}   the selected website id
	{{domain}}                       the selected website's domain
	{{path}} / {{url_path}}          the path filter (see below)
	{{created_at}}                   a date field (see below)
	{{anything_else}}                a custom variable

Placeholders may be written with inner spaces ({{ limit }}) and may be wrapped
in quotes ('{{entity_id}}'); a wrapped placeholder is replaced together with
its quotes. Every value is written as a single-quoted literal with each ' doubled.
Custom variable values that look like numbers (-12, 3.5) are written bare unless
the placeholder is quote-wrapped.

# Path filter

Assignment form, with a fallback literal used when no path is selected:

	WHERE url_path = [[ {{path}} -- ]] '/'

	no path              url_path = '/'
	one path, equals     url_path = '/a'
	one path, prefix     url_path LIKE '/a%'
	paths, equals        url_path IN ('/a', '/b')
	paths, prefix        (url_path LIKE '/a%' OR url_path LIKE '/b%')

Conditional form, dropped when no path is selected:

	WHERE event_type = 1 [[ AND {{path}} ]]

Several equals paths render as AND url_path IN (...). Several starts-with paths
have no conditional rendering: the block is left in the output and
Engine.ValidatePathFilter reports apperrors.ErrMultiPathConditional.

# Date range

	[[ AND {{created_at}} ]]

becomes

	AND e.created_at BETWEEN TIMESTAMP('2024-01-01') AND TIMESTAMP('2024-01-31T23:59:59')

where e is the alias of the event table, or of the session table when the event
table is not referenced. Other known tables joined by the query get the same
bound unless the query already compares their date column.

# Unresolved directives

Nothing in this package returns an error for a directive it cannot resolve. The
directive stays in the output and FindUnresolved lists it.

# Sanitize and restore

Sanitize swaps every block for a comment token and every placeholder for a
string token so a plain SQL formatter or validator can read the template;
Restore swaps them back.
*/
