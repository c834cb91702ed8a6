package templates

import (
	"bytes"
	"html/template"
)

type ChatTurnView struct {
	Role string
	HTML template.HTML
}

type ChatPageData struct {
	Title         string
	Models        []string
	SelectedModel string
	Token         string
	Turns         []ChatTurnView
	Error         string
	ExportLimit   int
	// ResetToken tells the page to forget a token that no longer resolves
	ResetToken    bool
}

const chatHTML = `
<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8"/>
  <title>{{.Title}}</title>
  <style>
    body {
      margin: 0;
      padding: 0;
      font-family: Arial, sans-serif;
      background-color: #f5f5f5;
      color: #333;
    }
    .chat-container {
      width: 100%;
      max-width: 820px;
      margin: 0 auto;
      background-color: #ffffff;
      border-radius: 6px;
      box-shadow: 0 2px 5px rgba(0,0,0,0.1);
    }
    .header {
      background-color: #333;
      padding: 16px 20px;
      color: #fff;
      display: flex;
      justify-content: space-between;
      align-items: center;
    }
    .header h1 {
      margin: 0;
      font-size: 22px;
    }
    .content {
      padding: 20px;
    }
    .turn {
      margin: 0 0 16px;
      padding: 10px 14px;
      border-radius: 4px;
    }
    .turn.user {
      background-color: #eef3ff;
    }
    .turn.assistant {
      background-color: #f7f7f7;
    }
    .turn .role {
      font-size: 12px;
      font-weight: bold;
      color: #999;
      text-transform: uppercase;
    }
    pre {
      background-color: #272822;
      color: #f8f8f2;
      padding: 10px;
      overflow-x: auto;
    }
    .error {
      color: #b00020;
      font-weight: bold;
    }
    textarea {
      width: 100%;
      min-height: 80px;
      box-sizing: border-box;
    }
    .cta-button {
      display: inline-block;
      padding: 8px 18px;
      background-color: #333;
      color: #ffffff;
      border: none;
      text-decoration: none;
      border-radius: 4px;
      font-weight: bold;
      cursor: pointer;
    }
    .footer {
      font-size: 12px;
      color: #999;
      text-align: center;
      padding: 10px 20px;
    }
  </style>
</head>
<body>
  <div class="chat-container">
    <div class="header">
      <h1>{{.Title}}</h1>
      <select id="model">
        {{range .Models}}
          <option value="{{.}}" {{if eq . $.SelectedModel}}selected{{end}}>{{.}}</option>
        {{end}}
      </select>
    </div>

    <div class="content" id="transcript">
      {{range .Turns}}
        <div class="turn {{.Role}}">
          <div class="role">{{.Role}}</div>
          {{.HTML}}
        </div>
      {{else}}
        <p>Ask Gemini anything.</p>
      {{end}}
      <p class="error" id="error">{{.Error}}</p>
    </div>

    <div class="content">
      <form id="chat-form">
        <textarea id="prompt" placeholder="Type your prompt"></textarea>
        <button class="cta-button" type="submit">Send</button>
        <button class="cta-button" type="button" id="new-chat">New chat</button>
      </form>
    </div>

    <div class="footer">
      <a href="#" id="export">Download last {{.ExportLimit}} exchanges (CSV)</a>
    </div>
  </div>

  <script>
    if ({{.ResetToken}}) { localStorage.removeItem("chatToken"); }
    const token = {{.Token}} || localStorage.getItem("chatToken") || "";
    const headers = {"Content-Type": "application/json", "X-Session-Token": token};

    if (token && !{{.Token}}) {
      location.search = "?token=" + encodeURIComponent(token);
    }

    async function startSession() {
      const model = document.getElementById("model").value;
      const res = await fetch("/api/session", {method: "POST", headers, body: JSON.stringify({model})});
      const body = await res.json();
      if (!res.ok) { document.getElementById("error").textContent = body.error; return; }
      localStorage.setItem("chatToken", body.token);
      location.search = "?token=" + encodeURIComponent(body.token);
    }

    document.getElementById("new-chat").addEventListener("click", async () => {
      if (token) { await fetch("/api/session", {method: "DELETE", headers}); }
      localStorage.removeItem("chatToken");
      startSession();
    });

    document.getElementById("chat-form").addEventListener("submit", async (e) => {
      e.preventDefault();
      if (!token) { startSession(); return; }
      const prompt = document.getElementById("prompt").value;
      const model = document.getElementById("model").value;
      const res = await fetch("/api/chat", {method: "POST", headers, body: JSON.stringify({prompt, model})});
      if (res.status === 401 || res.status === 404) { localStorage.removeItem("chatToken"); startSession(); return; }
      location.reload();
    });

    document.getElementById("export").addEventListener("click", (e) => {
      e.preventDefault();
      location.href = "/api/history/export?limit={{.ExportLimit}}&token=" + encodeURIComponent(token);
    });

    if (token) {
      const proto = location.protocol === "https:" ? "wss://" : "ws://";
      const ws = new WebSocket(proto + location.host + "/api/ws?token=" + encodeURIComponent(token));
      ws.onmessage = (ev) => {
        const msg = JSON.parse(ev.data);
        if (msg.action === "turn_appended" && document.visibilityState !== "visible") { location.reload(); }
      };
    }
  </script>
</body>
</html>
`

func RenderChatHTML(data ChatPageData) (string, error) {
	tmpl, err := template.New("chat").Parse(chatHTML)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
