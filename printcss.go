package docmerge

// printStyleSheet is the fixed print stylesheet applied to every rendered
// document: serif body text, justified paragraphs, bordered tables, and
// page-break protection around headings, tables, and lists. Page size and
// margins are set by the PDF renderer, not by CSS.
const printStyleSheet = `
@media print {
  section {
    margin-bottom: 2rem;
  }
  h1, h2, h3 {
    page-break-after: avoid;
    page-break-inside: avoid;
  }
  table {
    page-break-inside: avoid;
  }
  ul, ol {
    page-break-inside: avoid;
  }
}

body {
  font-family: 'Times New Roman', serif;
  font-size: 12pt;
  line-height: 1.6;
  color: #000;
  margin: 0;
  padding: 0;
}

article {
  padding: 20px;
}

h1 {
  font-size: 18pt;
  font-weight: bold;
  margin-top: 0;
  margin-bottom: 16pt;
  page-break-after: avoid;
}

h2 {
  font-size: 16pt;
  font-weight: bold;
  margin-top: 16pt;
  margin-bottom: 12pt;
  page-break-after: avoid;
}

h3 {
  font-size: 14pt;
  font-weight: bold;
  margin-top: 12pt;
  margin-bottom: 8pt;
  page-break-after: avoid;
}

p {
  margin-bottom: 8pt;
  text-align: justify;
}

ul, ol {
  margin-bottom: 8pt;
  padding-left: 20pt;
}

li {
  margin-bottom: 4pt;
}

table {
  width: 100%;
  border-collapse: collapse;
  margin-bottom: 12pt;
}

th, td {
  border: 1pt solid #000;
  padding: 6pt;
  text-align: left;
}

th {
  background-color: #f5f5f5;
  font-weight: bold;
}

strong {
  font-weight: bold;
}

em {
  font-style: italic;
}
`
