package dedupe_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/opst/drydock/pkg/domain"
	cvdb "github.com/opst/drydock/pkg/domain/contextversion/db"
	cvmock "github.com/opst/drydock/pkg/domain/contextversion/db/mock"
	domerr "github.com/opst/drydock/pkg/domain/errors"
	iccdb "github.com/opst/drydock/pkg/domain/inputcluster/db"
	iccmock "github.com/opst/drydock/pkg/domain/inputcluster/db/mock"
	"github.com/opst/drydock/pkg/engine/dedupe"
	gitmock "github.com/opst/drydock/pkg/workloads/git/mock"
)

func spec() domain.BuildSpec {
	return domain.BuildSpec{
		ContextId: "ctx-1",
		Files: []domain.SourceFile{
			{Path: "b.go", Hash: "hb"},
			{Path: "a.go", Hash: "ha"},
		},
		DockerfileHash: "df",
		AppCodeVersion: domain.AppCodeVersion{Repo: "Org/App", Branch: "Main", Commit: "c0ffee"},
	}
}

// store behaves like the context version table: one in-progress record per fingerprint.
type store struct {
	mu  sync.Mutex
	cvs []domain.ContextVersion
}

func (s *store) install(m *cvmock.ContextVersionInterface) {
	m.Impl.FindReusable = func(ctx context.Context, fingerprint string) ([]domain.ContextVersion, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		ret := []domain.ContextVersion{}
		for i := len(s.cvs) - 1; 0 <= i; i-- {
			if cv := s.cvs[i]; cv.Fingerprint == fingerprint && cv.State != domain.BuildErrored {
				ret = append(ret, cv)
			}
		}
		return ret, nil
	}
	m.Impl.New = func(ctx context.Context, n cvdb.NewContextVersion) (domain.ContextVersion, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, cv := range s.cvs {
			if cv.Fingerprint == n.Fingerprint && cv.State.InProgress() {
				return domain.ContextVersion{}, fmt.Errorf("%w: fingerprint", domerr.ErrConflict)
			}
		}
		cv := domain.ContextVersion{
			ContextVersionId: fmt.Sprintf("cv-%d", len(s.cvs)+1),
			ContextId:        n.ContextId,
			Owner:            n.Owner,
			Fingerprint:      n.Fingerprint,
			Inputs:           n.Inputs,
			State:            domain.Created,
		}
		s.cvs = append(s.cvs, cv)
		return cv, nil
	}
}

// serialized guards the mock, whose call logs are not goroutine safe.
type serialized struct {
	*cvmock.ContextVersionInterface
	mu sync.Mutex
}

func (s *serialized) FindReusable(ctx context.Context, fingerprint string) ([]domain.ContextVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ContextVersionInterface.FindReusable(ctx, fingerprint)
}

func (s *serialized) New(ctx context.Context, cv cvdb.NewContextVersion) (domain.ContextVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ContextVersionInterface.New(ctx, cv)
}

func TestResolveOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("it creates a ContextVersion with normalized inputs when nothing is found", func(t *testing.T) {
		cvs := cvmock.NewContextVersionInterface()
		st := &store{}
		st.install(cvs)
		testee := dedupe.New(cvs, iccmock.NewInputClusterInterface(), &gitmock.CommitResolver{}, 3)

		cv, hit, err := testee.ResolveOrCreate(ctx, "org-1", "user-1", spec())
		if err != nil {
			t.Fatal(err)
		}
		if hit {
			t.Error("it should not be a hit")
		}
		created := cvs.Calls.New.Last()
		if created.Fingerprint != domain.Fingerprint(spec().Inputs()) || cv.Fingerprint != created.Fingerprint {
			t.Errorf("unexpected fingerprint: %s", created.Fingerprint)
		}
		if created.Inputs.AppCodeVersion.Repo != "org/app" || created.Inputs.Files[0].Path != "a.go" {
			t.Errorf("inputs are not normalized: %+v", created.Inputs)
		}
		if created.Owner != "org-1" || created.CreatedBy != "user-1" || created.ContextId != "ctx-1" {
			t.Errorf("unexpected new: %+v", created)
		}
	})

	t.Run("it reuses the most recent reusable one", func(t *testing.T) {
		cvs := cvmock.NewContextVersionInterface()
		cvs.Impl.FindReusable = func(ctx context.Context, fingerprint string) ([]domain.ContextVersion, error) {
			return []domain.ContextVersion{
				{ContextVersionId: "cv-new", State: domain.BuildCompleted},
				{ContextVersionId: "cv-old", State: domain.BuildCompleted},
			}, nil
		}
		testee := dedupe.New(cvs, iccmock.NewInputClusterInterface(), &gitmock.CommitResolver{}, 3)

		cv, hit, err := testee.ResolveOrCreate(ctx, "org-1", "user-1", spec())
		if err != nil {
			t.Fatal(err)
		}
		if !hit || cv.ContextVersionId != "cv-new" {
			t.Errorf("unexpected: %s, hit=%v", cv.ContextVersionId, hit)
		}
		if cvs.Calls.New.Times() != 0 {
			t.Error("New should not be called")
		}
	})

	t.Run("identical concurrent requests create exactly one ContextVersion", func(t *testing.T) {
		cvs := cvmock.NewContextVersionInterface()
		st := &store{}
		st.install(cvs)
		testee := dedupe.New(&serialized{ContextVersionInterface: cvs}, iccmock.NewInputClusterInterface(), &gitmock.CommitResolver{}, 3)

		const n = 8
		type result struct {
			cv  domain.ContextVersion
			hit bool
			err error
		}
		results := make([]result, n)
		wg := new(sync.WaitGroup)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				cv, hit, err := testee.ResolveOrCreate(ctx, "org-1", "user-1", spec())
				results[i] = result{cv: cv, hit: hit, err: err}
			}()
		}
		wg.Wait()

		if len(st.cvs) != 1 {
			t.Fatalf("ContextVersions are created %d times", len(st.cvs))
		}
		misses := 0
		for _, r := range results {
			if r.err != nil {
				t.Fatal(r.err)
			}
			if r.cv.ContextVersionId != st.cvs[0].ContextVersionId {
				t.Errorf("unexpected ContextVersion: %s", r.cv.ContextVersionId)
			}
			if !r.hit {
				misses += 1
			}
		}
		if misses != 1 {
			t.Errorf("only one caller should create: misses = %d", misses)
		}
	})

	t.Run("errored ones are not reused", func(t *testing.T) {
		cvs := cvmock.NewContextVersionInterface()
		st := &store{}
		st.install(cvs)
		testee := dedupe.New(cvs, iccmock.NewInputClusterInterface(), &gitmock.CommitResolver{}, 3)

		first, _, err := testee.ResolveOrCreate(ctx, "org-1", "user-1", spec())
		if err != nil {
			t.Fatal(err)
		}
		st.cvs[0].State = domain.BuildErrored

		second, hit, err := testee.ResolveOrCreate(ctx, "org-1", "user-1", spec())
		if err != nil {
			t.Fatal(err)
		}
		if hit || second.ContextVersionId == first.ContextVersionId {
			t.Errorf("errored one is reused: %+v", second)
		}
	})

	t.Run("it gives up when contention does not settle", func(t *testing.T) {
		cvs := cvmock.NewContextVersionInterface()
		cvs.Impl.FindReusable = func(ctx context.Context, fingerprint string) ([]domain.ContextVersion, error) {
			return nil, nil
		}
		cvs.Impl.New = func(ctx context.Context, cv cvdb.NewContextVersion) (domain.ContextVersion, error) {
			return domain.ContextVersion{}, domerr.ErrConflict
		}
		testee := dedupe.New(cvs, iccmock.NewInputClusterInterface(), &gitmock.CommitResolver{}, 3)

		_, _, err := testee.ResolveOrCreate(ctx, "org-1", "user-1", spec())
		if !errors.Is(err, dedupe.ErrContention) {
			t.Errorf("unexpected error: %v", err)
		}
		if cvs.Calls.New.Times() != 3 {
			t.Errorf("New is called %d times", cvs.Calls.New.Times())
		}
	})

	t.Run("missing commit is resolved with the branch head", func(t *testing.T) {
		cvs := cvmock.NewContextVersionInterface()
		st := &store{}
		st.install(cvs)
		commits := &gitmock.CommitResolver{}
		commits.Impl.HeadCommit = func(ctx context.Context, repo string, branch string) (string, error) {
			return "deadbeef", nil
		}
		testee := dedupe.New(cvs, iccmock.NewInputClusterInterface(), commits, 3)

		s := spec()
		s.AppCodeVersion.Commit = ""
		cv, _, err := testee.ResolveOrCreate(ctx, "org-1", "user-1", s)
		if err != nil {
			t.Fatal(err)
		}
		if cv.Inputs.AppCodeVersion.Commit != "deadbeef" {
			t.Errorf("unexpected commit: %+v", cv.Inputs.AppCodeVersion)
		}
		if got := commits.Called.HeadCommit; len(got) != 1 || got[0].Repo != "Org/App" || got[0].Branch != "Main" {
			t.Errorf("unexpected HeadCommit calls: %+v", got)
		}
	})
}

func TestResolveOrCreateCluster(t *testing.T) {
	ctx := context.Background()
	clusterSpec := dedupe.ClusterSpec{
		AutoIsolationConfigId: "aic-1",
		Similarity: domain.ClusterSimilarity{
			Repo: "Org/App", Branch: "Main", IsTesting: true,
			Files: []string{"compose.yml", "compose.test.yml", "compose.yml"},
		},
		ParentInputClusterConfigId: "icc-parent",
		CreatedByUser:              "user-1",
		OwnedByOrg:                 "org-1",
	}

	t.Run("it creates with normalized similarity and parent linkage", func(t *testing.T) {
		clusters := iccmock.NewInputClusterInterface()
		clusters.Impl.FindSimilar = func(ctx context.Context, similarity domain.ClusterSimilarity) ([]domain.InputClusterConfig, error) {
			return nil, nil
		}
		clusters.Impl.New = func(ctx context.Context, config iccdb.NewInputClusterConfig) (domain.InputClusterConfig, error) {
			return domain.InputClusterConfig{InputClusterConfigId: "icc-1", ClusterSimilarity: config.Similarity}, nil
		}
		testee := dedupe.New(cvmock.NewContextVersionInterface(), clusters, &gitmock.CommitResolver{}, 3)

		icc, hit, err := testee.ResolveOrCreateCluster(ctx, clusterSpec)
		if err != nil {
			t.Fatal(err)
		}
		if hit || icc.InputClusterConfigId != "icc-1" {
			t.Errorf("unexpected: %+v, hit=%v", icc, hit)
		}
		want := domain.NewClusterSimilarity("org/app", "main", true, []string{"compose.test.yml", "compose.yml"})
		if got := clusters.Calls.FindSimilar.Last(); !got.Equal(want) {
			t.Errorf("unexpected similarity: %+v", got)
		}
		created := clusters.Calls.New.Last()
		if created.ParentInputClusterConfigId != "icc-parent" || created.AutoIsolationConfigId != "aic-1" {
			t.Errorf("unexpected new: %+v", created)
		}
	})

	t.Run("the loser of a creation race looks up again", func(t *testing.T) {
		winner := domain.InputClusterConfig{InputClusterConfigId: "icc-winner"}
		clusters := iccmock.NewInputClusterInterface()
		clusters.Impl.FindSimilar = func(ctx context.Context, similarity domain.ClusterSimilarity) ([]domain.InputClusterConfig, error) {
			if clusters.Calls.New.Times() == 0 {
				return nil, nil
			}
			return []domain.InputClusterConfig{winner}, nil
		}
		clusters.Impl.New = func(ctx context.Context, config iccdb.NewInputClusterConfig) (domain.InputClusterConfig, error) {
			return domain.InputClusterConfig{}, domerr.ErrConflict
		}
		testee := dedupe.New(cvmock.NewContextVersionInterface(), clusters, &gitmock.CommitResolver{}, 3)

		icc, hit, err := testee.ResolveOrCreateCluster(ctx, clusterSpec)
		if err != nil {
			t.Fatal(err)
		}
		if !hit || icc.InputClusterConfigId != "icc-winner" {
			t.Errorf("unexpected: %+v, hit=%v", icc, hit)
		}
	})
}
