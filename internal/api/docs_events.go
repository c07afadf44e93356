package api

// eventsDocsHTML documents GET /api/v1/events. OpenAPI has no good way to
// describe an SSE stream, so it lives on its own page.
const eventsDocsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Event Stream - pdown</title>
  <style>
    :root {
      --bg: #0d1117; --panel: #15121f; --line: #2b2440;
      --accent: #6d4aff; --soft: #c9b8ff; --text: #d7d3e4; --muted: #8c84a3;
    }
    body {
      margin: 0 auto; max-width: 860px; padding: 0 24px 64px;
      font: 14px/1.6 -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
      background: var(--bg); color: var(--text);
    }
    a { color: var(--soft); }
    header {
      display: flex; align-items: baseline; justify-content: space-between;
      padding: 20px 0 12px; border-bottom: 2px solid var(--accent);
    }
    header b { font-size: 18px; color: #fff; }
    header span { color: var(--muted); }
    h2 { margin-top: 36px; color: #fff; font-size: 17px; }
    h3 { margin: 20px 0 6px; font-size: 14px; color: var(--soft); }
    code, pre, .wire { font-family: ui-monospace, SFMono-Regular, Menlo, monospace; font-size: 12.5px; }
    code { color: var(--soft); }
    pre, .wire {
      background: var(--panel); border: 1px solid var(--line);
      border-radius: 6px; padding: 12px 14px; overflow-x: auto;
    }
    .wire { white-space: pre-wrap; word-break: break-all; }
    .route { font-size: 15px; padding: 10px 14px; border-left: 4px solid var(--accent); background: var(--panel); }
    .route b { color: #7ee2a8; margin-right: 8px; }
    .note { border-left: 4px solid #d29922; background: #1f1a10; padding: 10px 14px; }
    table { width: 100%; border-collapse: collapse; }
    th, td { text-align: left; padding: 6px 10px; border-bottom: 1px solid var(--line); vertical-align: top; }
    th { color: var(--muted); font-weight: 500; }
    dl.events dt { margin-top: 14px; }
    dl.events dd { margin: 4px 0 0 18px; }
    .fields { color: var(--muted); font-size: 12px; }
  </style>
</head>
<body>

<header>
  <div><b>pdown</b> <span>/ event stream</span></div>
  <a href="/docs">REST API docs</a>
</header>

<p>
  Every list and download run publishes lifecycle events while it drives the
  headless browser. The CLI progress display and the JSONL event log read the
  same events. This endpoint streams them to any HTTP client as Server-Sent Events.
</p>
<p class="note">
  Events are not replayed. Subscribe before posting to <code>/api/v1/downloads</code>
  to see a job from its first event.
</p>

<h2 id="endpoint">Endpoint</h2>
<div class="route"><b>GET</b><code>/api/v1/events</code></div>

<h3>Query parameters</h3>
<table>
  <tr><th>Name</th><th>Description</th></tr>
  <tr>
    <td><code>types</code></td>
    <td>Comma-separated event types to receive, all of them when omitted.
      Example: <code>?types=downloadprogress,downloadcomplete</code></td>
  </tr>
  <tr>
    <td><code>share</code></td>
    <td>Only forward events for this share ID. Run-wide events carry no share ID
      and are always forwarded.</td>
  </tr>
</table>

<h3>Response headers</h3>
<p>
  <code>Content-Type: text/event-stream</code>, <code>Cache-Control: no-cache</code>,
  <code>Connection: keep-alive</code> and <code>X-Accel-Buffering: no</code> so nginx
  does not hold events back.
</p>

<h2 id="events">Event types</h2>
<dl class="events">
  <dt><code>loadstart</code> / <code>loadcomplete</code> <span class="fields">shareID</span></dt>
  <dd><code>loadstart</code> fires once when a run begins. <code>loadcomplete</code>
    fires when a share page is unlocked and ready, and once more without a share ID
    when a listing run ends.</dd>

  <dt><code>downloadstart</code> <span class="fields">shareID filename size</span></dt>
  <dd>Fires once per share when the web app starts building the download.</dd>

  <dt><code>downloadprogress</code> <span class="fields">shareID filename progress size speed</span></dt>
  <dd>Fires on every poll while the transfer runs. <code>speed</code> is bytes per
    second as shown by the page and is left out when it cannot be read.</dd>

  <dt><code>downloadcomplete</code> <span class="fields">shareID filename size averageSpeed</span></dt>
  <dd>Fires once per share when the browser reports the file as written.</dd>
</dl>

<h2 id="wire">On the wire</h2>
<p>The SSE <code>event</code> field is the event type and <code>data</code> is the JSON event.</p>
<div class="wire">event: downloadprogress
data: {"event":"downloadprogress","shareID":"ABCDEFGHIJ#KLMNOPQRSTUV","filename":"backup.zip","progress":524288,"size":1048576,"speed":131072}

event: downloadcomplete
data: {"event":"downloadcomplete","shareID":"ABCDEFGHIJ#KLMNOPQRSTUV","filename":"backup.zip","size":1048576,"averageSpeed":120000}
</div>

<h2 id="examples">Examples</h2>
<pre><code>curl -N http://127.0.0.1:8190/api/v1/events
curl -N 'http://127.0.0.1:8190/api/v1/events?types=downloadcomplete&amp;share=ABCDEFGHIJ%23KLMNOPQRSTUV'</code></pre>

<pre><code>const sse = new EventSource('http://127.0.0.1:8190/api/v1/events');
sse.addEventListener('downloadprogress', (e) => {
  const evt = JSON.parse(e.data);
  console.log(evt.filename, evt.progress, '/', evt.size);
});</code></pre>

<h2 id="notes">Notes</h2>
<ul>
  <li>Each subscriber has a 256-event buffer. A slow client loses events instead of
    stalling a download.</li>
  <li>The <code>#</code> in a share ID must be sent as <code>%23</code> in the
    <code>share</code> parameter.</li>
  <li>The server has no authentication. Keep it bound to <code>127.0.0.1</code>.</li>
</ul>

</body>
</html>`
