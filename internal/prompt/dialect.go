// Package prompt assembles the LLM prompts used across the answer
// pipeline. Templates are plain Go strings filled with fmt; the NoQL
// dialect rules are shared by the generator and the exploration probes.
package prompt

// DialectRules is the NoQL syntax contract injected into every
// query-writing prompt. The reporting API rejects MySQL-isms, so the
// forbidden list is spelled out before anything else.
const DialectRules = `CRITICAL NoQL DIALECT RULES:

Forbidden functions (using any of these fails with INVALID_QUERY):
UNIX_TIMESTAMP(), DATE_SUB(), DATE_ADD(), NOW(), CURRENT_DATE(), INTERVAL,
FROM_UNIXTIME(), DATE_FORMAT(), DAYOFWEEK(), DAYNAME(), MONTHNAME(),
WEEK(), WEEKDAY(), STR_TO_DATE(), BETWEEN, EXTRACT()

Date filtering: compare numeric Unix timestamps directly, e.g.
WHERE created_at_timestamp >= 1704067200

Unix-epoch timestamp fields store SECONDS. Before any date function,
convert with TO_DATE(field * 1000):
  SELECT DAY_OF_WEEK(TO_DATE(timestamp * 1000)) AS dow, COUNT(*) FROM events GROUP BY dow
DAY_OF_WEEK returns 1-7 with Sunday=1.

Supported date functions (on date objects only): DAY_OF_WEEK, DAY_OF_MONTH,
MONTH, YEAR, HOUR, DATE_TRUNC(field, 'day'|'month'|'year'),
DATE_FROM_STRING, DATE_TO_STRING, DATE_DIFF.

Aggregates: COUNT(*), COUNT(DISTINCT f), SUM, AVG, MIN, MAX,
SUM(CASE WHEN cond THEN 1 ELSE 0 END).
Joins: INNER JOIN / LEFT JOIN with explicit ON.
Strings: CONCAT, TRIM, UPPER, LOWER, SUBSTRING, LENGTH, REPLACE, LIKE.
Conversion: CONVERT(expr, 'int'|'double'|'string'|'bool'|'date'),
TO_DATE, TO_INT, IFNULL.
Clauses: WHERE (no computed aliases), ORDER BY (field must appear in
SELECT), GROUP BY (include all non-aggregated columns), LIMIT/OFFSET.

Query style:
- Group by ONE dimension only.
- Avoid joins when the field already exists in the main collection.
- Always prefix columns with table aliases when joining.
- "per X" questions want a GROUP BY X distribution, not a single average.
- For hourly patterns, bucket hours into 3-hour ranges with CASE on
  HOUR(TO_DATE(field * 1000)).`
