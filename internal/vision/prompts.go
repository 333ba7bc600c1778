package vision

const classifyPrompt = `You are reviewing one page of a machine spare-parts catalog.

Decide what the page contains:
- "is_technical_drawing": true if the page is an exploded view or assembly drawing with numbered callouts
- "is_parts_list": true if the page is a table listing parts with reference numbers and part codes
- "title": the heading printed on the page (for example "GEARBOX ASSEMBLY"), or "" if there is none

A page can be both; say so. Cover pages, indexes and text pages are neither.

Respond with JSON only:
{"is_technical_drawing": false, "is_parts_list": false, "title": ""}`

const detectPrompt = `You are reviewing an exploded-view drawing from a machine spare-parts catalog.

Find every reference-number callout on the drawing (the small numbers, often circled, that point at parts).
For each callout return its bounding box in percent of the page width and height, measured from the top-left corner,
the number exactly as printed, and your confidence between 0 and 1.

Respond with JSON only:
{"hotspots": [{"label": "1", "left_percent": 10.5, "top_percent": 20.0, "width_percent": 2.0, "height_percent": 1.5, "confidence": 0.9}]}

Return {"hotspots": []} if there are no callouts.`

const extractPrompt = `You are reading the parts table on page %d of a machine spare-parts catalog.

Extract every row of the table in order:
- "ref_number": the reference number in the first column, as an integer (0 if the row has none)
- "part_code": the part number or order code exactly as printed
- "part_name": the part description

Skip header rows and empty rows. Do not invent rows.

Respond with JSON only:
{"products": [{"ref_number": 1, "part_code": "", "part_name": ""}]}`

const coverPrompt = `You are looking at the cover page of a machine spare-parts catalog.

Read the following from the cover:
- "machine_model": the machine model designation (for example "DDL-8700")
- "machine_brand": the manufacturer
- "machine_group": the kind of machine (for example "Sewing Machine"), or "" if not stated
- "catalog_title": the catalog title (for example "Parts List")

Use "" for anything not printed on the page.

Respond with JSON only:
{"machine_model": "", "machine_brand": "", "machine_group": "", "catalog_title": ""}`
