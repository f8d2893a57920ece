package tower

import (
	"context"
	"net"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
)

func dialTower(t *testing.T, tw *Tower) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterService(srv, tw)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func TestRPCStatusAndResume(t *testing.T) {
	rig := newTowerRig(t)
	rig.respond(map[model.NodeAddress][]byte{h1: h1Readings})
	if err := rig.tower.Tick(context.Background()); err == nil {
		t.Fatal("silent harvester accepted")
	}
	client := dialTower(t, rig.tower)
	ctx := context.Background()

	st, err := client.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	f := st.GetFields()
	if !f["halted"].GetBoolValue() || f["phase"].GetStringValue() != "harvest" || f["phase_number"].GetNumberValue() != 1 {
		t.Fatalf("status = %v", st)
	}
	if !strings.Contains(f["last_error"].GetStringValue(), "h2") {
		t.Fatalf("last_error = %q", f["last_error"].GetStringValue())
	}
	if n := len(f["pot_map"].GetListValue().GetValues()); n != 16 {
		t.Fatalf("pot_map has %d values", n)
	}

	if err := client.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	if rig.tower.Status().Halted {
		t.Fatal("still halted after Resume")
	}
	if err := client.Resume(ctx); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("second Resume = %v", err)
	}
}
