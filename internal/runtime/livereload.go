package runtime

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// LiveReloadPath is the websocket endpoint the injected client connects to.
const LiveReloadPath = "/_pagemill/ws"

const liveReloadScript = `(function () {
  var protocol = window.location.protocol === 'https:' ? 'wss:' : 'ws:';
  var connect = function () {
    var ws = new WebSocket(protocol + '//' + window.location.host + '` + LiveReloadPath + `');
    ws.onmessage = function (event) {
      var message = JSON.parse(event.data);
      if (message.type === 'full_reload') {
        window.location.reload();
      }
    };
    ws.onclose = function () {
      setTimeout(connect, 2000);
    };
  };
  connect();
})();`

// InjectLiveReload appends the live reload client to the body of document.
// Documents that cannot be parsed get the script appended verbatim.
func InjectLiveReload(document string) string {
	doc, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return document + "<script>" + liveReloadScript + "</script>"
	}

	body := findElement(doc, atom.Body)
	if body == nil {
		return document + "<script>" + liveReloadScript + "</script>"
	}

	script := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Script,
		Data:     "script",
		Attr:     []html.Attribute{{Key: "data-pagemill", Val: "live-reload"}},
	}
	script.AppendChild(&html.Node{Type: html.TextNode, Data: liveReloadScript})
	body.AppendChild(script)

	var out strings.Builder
	if err := html.Render(&out, doc); err != nil {
		return document + "<script>" + liveReloadScript + "</script>"
	}
	return out.String()
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
