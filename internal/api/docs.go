package api

// docsHTML renders the OpenAPI document served at /openapi.json. Huma's own
// docs route is disabled so the page can link the event stream docs and the
// metrics endpoint.
const docsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>pdown API</title>
  <link rel="stylesheet" href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
  <style>
    html, body { height: 100%; margin: 0; background: #0d1117; }
    .pdown-nav {
      position: fixed; top: 10px; right: 14px; z-index: 10000;
      display: flex; gap: 8px;
      font: 500 12px -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
    }
    .pdown-nav a {
      padding: 4px 10px; border-radius: 6px;
      background: #1c1530; border: 1px solid #6d4aff; color: #c9b8ff;
      text-decoration: none;
    }
    .pdown-nav a:hover { background: #6d4aff; color: #fff; }
  </style>
</head>
<body>
  <nav class="pdown-nav">
    <a href="/docs/events">Event stream</a>
    <a href="/metrics">Metrics</a>
  </nav>
  <elements-api
    apiDescriptionUrl="/openapi.json"
    router="hash"
    layout="sidebar"
    hideExport
    tryItCredentialsPolicy="same-origin"
  />
</body>
</html>`
